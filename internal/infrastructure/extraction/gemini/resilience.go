package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/infrastructure/extraction"
	"github.com/greengrowth/taxagent/internal/infrastructure/resilience"
)

// classifyExtractionError decides retry and breaker accounting for one failed
// extraction attempt. A 429 that carries Retry-After is service backpressure
// and retries; a 429 or 403 without it is an exhausted quota and does not.
func classifyExtractionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests && statusErr.RetryAfter > 0:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode == http.StatusForbidden:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	// A response with no JSON in it at all usually means the model glitched;
	// another attempt tends to fix it.
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

// wrapExtractionError maps a final attempt error onto the domain error kinds
// the pipeline reports per document.
func wrapExtractionError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests && statusErr.RetryAfter > 0:
			return domain.WrapError(domain.ErrTransient, operation, err)
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrQuotaExceeded, operation, err)
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return domain.WrapError(domain.ErrTransient, operation, err)
		default:
			return domain.WrapError(domain.ErrMalformedResponse, operation, err)
		}
	}

	if errors.Is(err, extraction.ErrNotJSON) || extraction.IsSchemaViolation(err) {
		return domain.WrapError(domain.ErrMalformedResponse, operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransient, operation, err)
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
