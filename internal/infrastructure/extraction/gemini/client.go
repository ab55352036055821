package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/infrastructure/extraction"
	"github.com/greengrowth/taxagent/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to the Gemini generateContent REST API and implements the
// FieldExtractor port. All calls go through the shared rate limiter and the
// retry/breaker executor.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(cfg Config, limiter *rate.Limiter, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   executor,
	}
}

// ExtractFields runs the field-extraction prompt for one document's text and
// parses the model response into a TaxRecord. A structurally wrong response
// gets one reformulation pass; persistent structural failure surfaces as a
// malformed-response error and is not retried.
func (c *Client) ExtractFields(ctx context.Context, text string, hint domain.DocumentType) (domain.TaxRecord, error) {
	const op = "extract fields"

	prompt := extraction.BuildPrompt(text, hint)

	var record domain.TaxRecord
	err := c.executor.Execute(ctx, "gemini_extract", func(ctx context.Context) error {
		extracted, attemptErr := c.extractOnce(ctx, prompt)
		if attemptErr != nil {
			return attemptErr
		}
		record = extracted
		return nil
	}, classifyExtractionError)
	if err != nil {
		return domain.TaxRecord{}, wrapExtractionError(op, err)
	}
	return record, nil
}

func (c *Client) extractOnce(ctx context.Context, prompt string) (domain.TaxRecord, error) {
	raw, err := c.generateContent(ctx, prompt)
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

	// One repair round trip before declaring the document unextractable.
	repaired, err := c.generateContent(ctx, extraction.BuildReformulationPrompt(raw))
	if err != nil {
		return domain.TaxRecord{}, err
	}
	record, reparseErr := extraction.ParseRecord(repaired)
	if reparseErr != nil {
		return domain.TaxRecord{}, fmt.Errorf("reformulation failed: %w (original: %v)", reparseErr, parseErr)
	}
	return record, nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	request := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}

	var response generateContentResponse
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.cfg.Model)
	if err := c.postJSON(ctx, path, request, &response, "generate"); err != nil {
		return "", err
	}

	text := response.firstText()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty model response: %w", extraction.ErrNotJSON)
	}
	return text, nil
}

// Ping verifies the extraction service is reachable and the configured model
// exists. Used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	path := fmt.Sprintf("/v1beta/models/%s", c.cfg.Model)
	if err := c.getJSON(ctx, path, &struct{}{}, "ping"); err != nil {
		return domain.WrapError(domain.ErrTransient, "ping extraction service", err)
	}
	return nil
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateContentResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		builder.WriteString(p.Text)
	}
	return builder.String()
}
