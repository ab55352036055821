// Package openaicompat implements the FieldExtractor port against any
// OpenAI-compatible chat-completions endpoint, for deployments that front the
// extraction model with a local gateway instead of Gemini.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/infrastructure/extraction"
	"github.com/greengrowth/taxagent/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Client struct {
	api      *openai.Client
	model    string
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:      openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		executor: executor,
	}
}

func (c *Client) ExtractFields(ctx context.Context, text string, hint domain.DocumentType) (domain.TaxRecord, error) {
	const op = "extract fields"

	prompt := extraction.BuildPrompt(text, hint)

	var record domain.TaxRecord
	err := c.executor.Execute(ctx, "openai_extract", func(ctx context.Context) error {
		extracted, attemptErr := c.extractOnce(ctx, prompt)
		if attemptErr != nil {
			return attemptErr
		}
		record = extracted
		return nil
	}, classifyCompletionError)
	if err != nil {
		return domain.TaxRecord{}, wrapCompletionError(op, err)
	}
	return record, nil
}

func (c *Client) extractOnce(ctx context.Context, prompt string) (domain.TaxRecord, error) {
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return domain.TaxRecord{}, err
	}

	record, parseErr := extraction.ParseRecord(raw)
	if parseErr == nil {
		return record, nil
	}
	if !extraction.IsSchemaViolation(parseErr) {
		return domain.TaxRecord{}, parseErr
	}

	repaired, err := c.complete(ctx, extraction.BuildReformulationPrompt(raw))
	if err != nil {
		return domain.TaxRecord{}, err
	}
	record, reparseErr := extraction.ParseRecord(repaired)
	if reparseErr != nil {
		return domain.TaxRecord{}, fmt.Errorf("reformulation failed: %w (original: %v)", reparseErr, parseErr)
	}
	return record, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion: %w", extraction.ErrNotJSON)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return domain.WrapError(domain.ErrTransient, "ping extraction service", err)
	}
	return nil
}

func classifyCompletionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		// Gateways speaking this protocol do not surface Retry-After through
		// the client, so a 429 is read as quota exhaustion.
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests, apiErr.HTTPStatusCode == http.StatusForbidden:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		case isRetryableHTTPStatus(apiErr.HTTPStatusCode):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	if errors.Is(err, extraction.ErrNotJSON) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}
	if extraction.IsSchemaViolation(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapCompletionError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests, apiErr.HTTPStatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrQuotaExceeded, operation, err)
		case isRetryableHTTPStatus(apiErr.HTTPStatusCode):
			return domain.WrapError(domain.ErrTransient, operation, err)
		default:
			return domain.WrapError(domain.ErrMalformedResponse, operation, err)
		}
	}

	if errors.Is(err, extraction.ErrNotJSON) || extraction.IsSchemaViolation(err) {
		return domain.WrapError(domain.ErrMalformedResponse, operation, err)
	}

	return domain.WrapError(domain.ErrTransient, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
