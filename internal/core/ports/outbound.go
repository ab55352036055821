package ports

import (
	"context"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// DocumentStore holds uploaded document bytes for the lifetime of a single
// request. Implementations must never write to durable storage; Release must
// make the bytes unrecoverable.
type DocumentStore interface {
	Put(id string, data []byte) error
	Get(id string) ([]byte, error)
	Release(id string)
	Clear()
}

// TextExtractor converts document bytes to raw text.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.UploadedDocument, data []byte) (string, error)
}

// FieldExtractor sends document text to the external field-extraction service
// and returns a structured record. Transient failures are retried internally;
// terminal failures surface as classified error kinds.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string, hint domain.DocumentType) (domain.TaxRecord, error)
	Ping(ctx context.Context) error
}

// FormPopulator consumes the masked field mapping and renders a target form.
type FormPopulator interface {
	Populate(ctx context.Context, fields map[string]string) ([]byte, error)
}
