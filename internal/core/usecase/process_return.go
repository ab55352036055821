package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/core/ports"
	"github.com/greengrowth/taxagent/internal/core/tax"
)

// ProcessReturnUseCase runs the full pipeline for one request: per-document
// text extraction and field extraction in parallel, then validation,
// aggregation and the tax computation over the surviving records.
type ProcessReturnUseCase struct {
	textExtractor  ports.TextExtractor
	fieldExtractor ports.FieldExtractor
	validator      *FieldValidator
	aggregator     *Aggregator
	engine         *tax.Engine
	maxConcurrent  int
}

func NewProcessReturnUseCase(
	textExtractor ports.TextExtractor,
	fieldExtractor ports.FieldExtractor,
	engine *tax.Engine,
	maxConcurrent int,
) *ProcessReturnUseCase {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ProcessReturnUseCase{
		textExtractor:  textExtractor,
		fieldExtractor: fieldExtractor,
		validator:      NewFieldValidator(),
		aggregator:     NewAggregator(),
		engine:         engine,
		maxConcurrent:  maxConcurrent,
	}
}

// documentResult pairs one upload's outcome with its validated record. record
// is nil when the document failed or validation found a fatal issue; failure
// keeps the classified error for request-level reporting.
type documentResult struct {
	outcome domain.DocumentOutcome
	record  *domain.ValidatedRecord
	failure error
}

func (uc *ProcessReturnUseCase) Process(
	ctx context.Context,
	store ports.DocumentStore,
	uploads []domain.UploadedDocument,
) (*domain.ReturnResult, error) {
	const op = "process return"

	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("no documents uploaded"))
	}

	// Uploaded bytes never outlive the request, whatever the outcome.
	defer store.Clear()

	results := make([]documentResult, len(uploads))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(uc.maxConcurrent)
	for i, upload := range uploads {
		group.Go(func() error {
			results[i] = uc.processDocument(gctx, store, upload)
			// Per-document failures land in the outcome; only context
			// cancellation stops the siblings.
			return gctx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	outcomes := make([]domain.DocumentOutcome, 0, len(results))
	records := make([]domain.ValidatedRecord, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, result.outcome)
		if result.record != nil {
			records = append(records, *result.record)
		}
	}

	if len(records) == 0 {
		return nil, uc.noValidDocumentsError(op, results)
	}

	profile, err := uc.aggregator.Aggregate(records)
	if err != nil {
		return nil, err
	}

	computation, err := uc.engine.Compute(profile)
	profile.ClearIdentity()
	if err != nil {
		return nil, err
	}

	slog.Info("return_processed",
		"documents", len(uploads),
		"processed", len(records),
		"failed", len(uploads)-len(records),
		"filing_status", computation.FilingStatus,
		"is_refund", computation.IsRefund,
	)

	return &domain.ReturnResult{
		Computation: computation,
		Documents:   outcomes,
		FormFields:  computation.FormFields(),
	}, nil
}

func (uc *ProcessReturnUseCase) processDocument(
	ctx context.Context,
	store ports.DocumentStore,
	upload domain.UploadedDocument,
) documentResult {
	outcome := domain.DocumentOutcome{
		DocumentID: upload.ID,
		Filename:   upload.Filename,
		Status:     domain.DocStatusFailed,
	}

	data, err := store.Get(upload.ID)
	if err != nil {
		outcome.Error = "document bytes unavailable"
		return documentResult{outcome: outcome}
	}

	text, err := uc.textExtractor.Extract(ctx, upload, data)
	// The raw bytes are not needed once text exists; drop them early.
	store.Release(upload.ID)
	if err != nil {
		slog.Warn("text_extraction_failed", "document_id", upload.ID, "filename", upload.Filename, "error", err)
		outcome.Error = displayError(err)
		return documentResult{outcome: outcome}
	}

	record, err := uc.fieldExtractor.ExtractFields(ctx, text, guessDocumentType(upload.Filename))
	if err != nil {
		slog.Warn("field_extraction_failed", "document_id", upload.ID, "filename", upload.Filename, "error", err)
		outcome.Error = displayError(err)
		return documentResult{outcome: outcome, failure: err}
	}

	validated, issues := uc.validator.Validate(record)
	outcome.DocumentType = record.DocumentType
	outcome.Issues = issues
	if domain.HasFatal(issues) {
		outcome.Error = "document failed validation"
		return documentResult{outcome: outcome}
	}

	outcome.Status = domain.DocStatusProcessed
	return documentResult{outcome: outcome, record: &validated}
}

// noValidDocumentsError picks the request-level error when every document
// failed: a quota or transient extraction failure explains the whole request
// better than a generic no-valid-documents response.
func (uc *ProcessReturnUseCase) noValidDocumentsError(op string, results []documentResult) error {
	var transient error
	for _, result := range results {
		if result.failure == nil {
			continue
		}
		if domain.IsKind(result.failure, domain.ErrQuotaExceeded) {
			return result.failure
		}
		if transient == nil && domain.IsKind(result.failure, domain.ErrTransient) {
			transient = result.failure
		}
	}
	if transient != nil {
		return transient
	}
	return domain.WrapError(domain.ErrNoValidDocuments, op, errors.New("every uploaded document failed"))
}

// guessDocumentType derives a classification hint from the filename. The
// extraction service always re-classifies from content; a wrong hint is
// harmless.
func guessDocumentType(filename string) domain.DocumentType {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "w-2"), strings.Contains(name, "w2"):
		return domain.DocTypeW2
	case strings.Contains(name, "1099-int"), strings.Contains(name, "1099int"):
		return domain.DocType1099INT
	case strings.Contains(name, "1099-nec"), strings.Contains(name, "1099nec"):
		return domain.DocType1099NEC
	case strings.Contains(name, "1099-div"), strings.Contains(name, "1099div"):
		return domain.DocType1099DIV
	case strings.Contains(name, "1099-misc"), strings.Contains(name, "1099misc"):
		return domain.DocType1099MISC
	default:
		return domain.DocTypeOther
	}
}

// displayError keeps per-document error strings terse and free of wrapped
// internals.
func displayError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return "extraction service quota exhausted"
	case domain.IsKind(err, domain.ErrTransient):
		return "extraction service temporarily unavailable"
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return "extraction service returned an unusable response"
	case domain.IsKind(err, domain.ErrUnsupportedDocument):
		return "document type is not supported"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "document contains no extractable text"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing deadline exceeded"
	default:
		return fmt.Sprintf("processing failed: %v", err)
	}
}
