package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrNoValidDocuments),
		domain.IsKind(err, domain.ErrUnsupportedDocument):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflictingIdentity):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// displayMessage keeps response bodies free of wrapped internal detail.
func displayMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNoValidDocuments):
		return "no uploaded document could be processed"
	case domain.IsKind(err, domain.ErrConflictingIdentity):
		return "uploaded documents belong to different taxpayers"
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return "extraction service quota exhausted, try again later"
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return "extraction service returned an unusable response"
	case domain.IsKind(err, domain.ErrTransient):
		return "extraction service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing deadline exceeded"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	default:
		return "internal error"
	}
}
