package ports

import (
	"context"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// ReturnProcessor runs the full extraction→validation→aggregation→computation
// pipeline for one request. The store owns the uploaded bytes and is cleared
// before Process returns, whatever the outcome.
type ReturnProcessor interface {
	Process(ctx context.Context, store DocumentStore, uploads []domain.UploadedDocument) (*domain.ReturnResult, error)
}
