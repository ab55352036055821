package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/core/tax"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	released []string
	cleared  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Put(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = data
	return nil
}

func (s *fakeStore) Get(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return data, nil
}

func (s *fakeStore) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, id)
	delete(s.data, id)
}

func (s *fakeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = true
	s.data = make(map[string][]byte)
}

type fakeTextExtractor struct{}

func (fakeTextExtractor) Extract(_ context.Context, doc domain.UploadedDocument, data []byte) (string, error) {
	return string(data), nil
}

// fakeFieldExtractor maps extracted text to a canned record or error.
type fakeFieldExtractor struct {
	mu      sync.Mutex
	records map[string]domain.TaxRecord
	errs    map[string]error
	calls   int
}

func (f *fakeFieldExtractor) ExtractFields(_ context.Context, text string, _ domain.DocumentType) (domain.TaxRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[text]; ok {
		return domain.TaxRecord{}, err
	}
	if record, ok := f.records[text]; ok {
		return record, nil
	}
	return domain.TaxRecord{}, errors.New("unexpected text: " + text)
}

func (f *fakeFieldExtractor) Ping(context.Context) error { return nil }

func w2Record(t *testing.T, identifier, wages, withholding string) domain.TaxRecord {
	t.Helper()
	return domain.TaxRecord{
		DocumentType:       domain.DocTypeW2,
		TaxpayerName:       "Jane Q. Public",
		Identifier:         identifier,
		FilingStatus:       domain.FilingSingle,
		Wages:              amount(t, wages),
		FederalWithholding: amount(t, withholding),
	}
}

func interestRecord(t *testing.T, identifier, interest string) domain.TaxRecord {
	t.Helper()
	return domain.TaxRecord{
		DocumentType:   domain.DocType1099INT,
		TaxpayerName:   "Jane Q. Public",
		Identifier:     identifier,
		InterestIncome: amount(t, interest),
	}
}

func newUseCase(t *testing.T, extractor *fakeFieldExtractor) *ProcessReturnUseCase {
	t.Helper()
	tables, err := tax.LoadTables()
	if err != nil {
		t.Fatalf("LoadTables() error = %v", err)
	}
	return NewProcessReturnUseCase(fakeTextExtractor{}, extractor, tax.NewEngine(tables), 4)
}

func TestProcessComputesReturnAcrossDocuments(t *testing.T) {
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{
			"w2 text":  w2Record(t, "123-45-6789", "60000", "6000"),
			"int text": interestRecord(t, "123-45-6789", "1000"),
		},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	uploads := []domain.UploadedDocument{
		{ID: "d1", Filename: "w2.pdf", MimeType: "application/pdf"},
		{ID: "d2", Filename: "1099-int.pdf", MimeType: "application/pdf"},
	}
	_ = store.Put("d1", []byte("w2 text"))
	_ = store.Put("d2", []byte("int text"))

	result, err := uc.Process(context.Background(), store, uploads)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// 61000 income - 14600 deduction = 46400 taxable, 5147 + 22% over 44725.
	if got := result.Computation.TaxOwed.StringFixed(2); got != "5515.50" {
		t.Fatalf("tax owed = %s, want 5515.50", got)
	}
	if got := result.Computation.RefundOrOwed.StringFixed(2); got != "484.50" {
		t.Fatalf("refund = %s, want 484.50", got)
	}
	if !result.Computation.IsRefund {
		t.Fatalf("expected a refund")
	}
	if result.Computation.MaskedIdentifier != "***-**-6789" {
		t.Fatalf("masked identifier = %q", result.Computation.MaskedIdentifier)
	}
	if result.FormFields["masked_identifier"] != "***-**-6789" {
		t.Fatalf("form fields identifier = %q", result.FormFields["masked_identifier"])
	}
	for _, outcome := range result.Documents {
		if outcome.Status != domain.DocStatusProcessed {
			t.Fatalf("document %s status = %s", outcome.DocumentID, outcome.Status)
		}
	}
	if !store.cleared {
		t.Fatalf("store must be cleared before Process returns")
	}
	if len(store.released) != 2 {
		t.Fatalf("bytes should be released right after text extraction, released=%v", store.released)
	}
}

func TestProcessDefaultsFilingStatusWithWarning(t *testing.T) {
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{
			"int text": interestRecord(t, "123-45-6789", "20000"),
		},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	_ = store.Put("d1", []byte("int text"))

	result, err := uc.Process(context.Background(), store, []domain.UploadedDocument{
		{ID: "d1", Filename: "1099-int.pdf", MimeType: "application/pdf"},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Computation.FilingStatus != domain.FilingSingle {
		t.Fatalf("filing status = %q, want single default", result.Computation.FilingStatus)
	}

	outcome := result.Documents[0]
	if outcome.Status != domain.DocStatusProcessed {
		t.Fatalf("document status = %s, a defaulted status must not exclude the record", outcome.Status)
	}
	issue := issueByCode(outcome.Issues, domain.IssueMissingFilingStatus)
	if issue == nil || issue.Severity != domain.SeverityWarning {
		t.Fatalf("expected a filing-status warning on the outcome, got %+v", outcome.Issues)
	}
}

func TestProcessToleratesPartialFailure(t *testing.T) {
	transient := domain.WrapError(domain.ErrTransient, "extract fields", errors.New("503"))
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{
			"good": w2Record(t, "123-45-6789", "60000", "6000"),
		},
		errs: map[string]error{"bad": transient},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	uploads := []domain.UploadedDocument{
		{ID: "d1", Filename: "w2.pdf"},
		{ID: "d2", Filename: "other.pdf"},
	}
	_ = store.Put("d1", []byte("good"))
	_ = store.Put("d2", []byte("bad"))

	result, err := uc.Process(context.Background(), store, uploads)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := result.Computation.TaxableIncome.StringFixed(2); got != "45400.00" {
		t.Fatalf("taxable income = %s, want computation from the surviving document", got)
	}

	var failed *domain.DocumentOutcome
	for i := range result.Documents {
		if result.Documents[i].DocumentID == "d2" {
			failed = &result.Documents[i]
		}
	}
	if failed == nil || failed.Status != domain.DocStatusFailed {
		t.Fatalf("expected d2 to fail, outcomes = %+v", result.Documents)
	}
	if failed.Error == "" || strings.Contains(failed.Error, "503") {
		t.Fatalf("failed outcome needs a display-safe error, got %q", failed.Error)
	}
}

func TestProcessAllQuotaFailuresSurfaceQuotaError(t *testing.T) {
	quota := domain.WrapError(domain.ErrQuotaExceeded, "extract fields", errors.New("429"))
	extractor := &fakeFieldExtractor{errs: map[string]error{"doc": quota}}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	_ = store.Put("d1", []byte("doc"))

	_, err := uc.Process(context.Background(), store, []domain.UploadedDocument{{ID: "d1", Filename: "w2.pdf"}})
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if !store.cleared {
		t.Fatalf("store must be cleared on the failure path too")
	}
}

func TestProcessConflictingIdentifiersAbort(t *testing.T) {
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{
			"a": w2Record(t, "123-45-6789", "100", "10"),
			"b": interestRecord(t, "987-65-4321", "50"),
		},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	_ = store.Put("d1", []byte("a"))
	_ = store.Put("d2", []byte("b"))

	_, err := uc.Process(context.Background(), store, []domain.UploadedDocument{
		{ID: "d1", Filename: "w2.pdf"},
		{ID: "d2", Filename: "1099-int.pdf"},
	})
	if !domain.IsKind(err, domain.ErrConflictingIdentity) {
		t.Fatalf("expected conflicting-identity error, got %v", err)
	}
}

func TestProcessFatalValidationExcludesDocument(t *testing.T) {
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{
			"doc": w2Record(t, "123-45-6789", "100", "-55.12"),
		},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	_ = store.Put("d1", []byte("doc"))

	_, err := uc.Process(context.Background(), store, []domain.UploadedDocument{{ID: "d1", Filename: "w2.pdf"}})
	if !domain.IsKind(err, domain.ErrNoValidDocuments) {
		t.Fatalf("expected no-valid-documents error, got %v", err)
	}
}

func TestProcessEmptyUploadsIsInvalidInput(t *testing.T) {
	uc := newUseCase(t, &fakeFieldExtractor{})
	if _, err := uc.Process(context.Background(), newFakeStore(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	extractor := &fakeFieldExtractor{
		records: map[string]domain.TaxRecord{"doc": w2Record(t, "123-45-6789", "100", "10")},
	}
	uc := newUseCase(t, extractor)

	store := newFakeStore()
	_ = store.Put("d1", []byte("doc"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := uc.Process(ctx, store, []domain.UploadedDocument{{ID: "d1", Filename: "w2.pdf"}}); err == nil {
		t.Fatalf("expected context error")
	}
}
