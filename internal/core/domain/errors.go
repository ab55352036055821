package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrTransient           = errors.New("transient extraction failure")
	ErrQuotaExceeded       = errors.New("extraction quota exceeded")
	ErrMalformedResponse   = errors.New("malformed extraction response")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrConflictingIdentity = errors.New("conflicting taxpayer identity")
	ErrNoValidDocuments    = errors.New("no valid documents")
	ErrInvariant           = errors.New("computation invariant violation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
