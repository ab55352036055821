package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/core/ports"
	"github.com/greengrowth/taxagent/internal/observability/metrics"
)

const multipartFileField = "files"

type Limits struct {
	MaxFilesPerRequest int
	MaxFileSizeBytes   int64
	RequestTimeout     time.Duration
}

type Router struct {
	service        string
	processor      ports.ReturnProcessor
	newStore       func() ports.DocumentStore
	fieldExtractor ports.FieldExtractor
	populators     map[string]ports.FormPopulator
	metrics        *metrics.HTTPServerMetrics
	limits         Limits
}

func NewRouter(
	service string,
	processor ports.ReturnProcessor,
	newStore func() ports.DocumentStore,
	fieldExtractor ports.FieldExtractor,
	populators map[string]ports.FormPopulator,
	serverMetrics *metrics.HTTPServerMetrics,
	limits Limits,
) *Router {
	if limits.MaxFilesPerRequest <= 0 {
		limits.MaxFilesPerRequest = 10
	}
	if limits.MaxFileSizeBytes <= 0 {
		limits.MaxFileSizeBytes = 16 << 20
	}
	if limits.RequestTimeout <= 0 {
		limits.RequestTimeout = 120 * time.Second
	}
	return &Router{
		service:        service,
		processor:      processor,
		newStore:       newStore,
		fieldExtractor: fieldExtractor,
		populators:     populators,
		metrics:        serverMetrics,
		limits:         limits,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/returns", rt.processReturn)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := rt.fieldExtractor.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "extraction service unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type documentReport struct {
	DocumentID   string        `json:"document_id"`
	Filename     string        `json:"filename"`
	Status       string        `json:"status"`
	DocumentType string        `json:"document_type,omitempty"`
	Issues       []issueReport `json:"issues,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type issueReport struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type returnResponse struct {
	TaxpayerName       string            `json:"taxpayer_name"`
	MaskedIdentifier   string            `json:"masked_identifier"`
	FilingStatus       string            `json:"filing_status"`
	TotalIncome        string            `json:"total_income"`
	AdjustedGross      string            `json:"adjusted_gross_income"`
	StandardDeduction  string            `json:"standard_deduction"`
	TaxableIncome      string            `json:"taxable_income"`
	TaxOwed            string            `json:"tax_owed"`
	FederalWithholding string            `json:"federal_withholding"`
	RefundOrOwed       string            `json:"refund_or_owed"`
	IsRefund           bool              `json:"is_refund"`
	Documents          []documentReport  `json:"documents"`
	FormFields         map[string]string `json:"form_fields"`
}

func (rt *Router) processReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.limits.RequestTimeout)
	defer cancel()

	maxBody := rt.limits.MaxFileSizeBytes*int64(rt.limits.MaxFilesPerRequest) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	// Parts stream straight into the document store; ParseMultipartForm would
	// spool large parts to temp files, and raw document bytes must never
	// touch disk.
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart request"})
		return
	}

	store := rt.newStore()
	defer store.Clear()

	var uploads []domain.UploadedDocument
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart request"})
			return
		}
		if part.FormName() != multipartFileField || part.FileName() == "" {
			continue
		}
		if len(uploads) >= rt.limits.MaxFilesPerRequest {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("maximum %d files allowed per upload", rt.limits.MaxFilesPerRequest),
			})
			return
		}
		upload, status, msg := rt.admitPart(store, part)
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		uploads = append(uploads, upload)
	}
	if len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files provided in request"})
		return
	}

	start := time.Now()
	rt.metrics.StartReturn(rt.service, len(uploads))
	result, err := rt.processor.Process(ctx, store, uploads)
	rt.metrics.FinishReturn(rt.service, time.Since(start), err)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": displayMessage(err)})
		return
	}
	for _, outcome := range result.Documents {
		rt.metrics.RecordDocument(rt.service, string(outcome.Status), string(outcome.DocumentType))
	}

	if form := r.URL.Query().Get("form"); form != "" {
		rt.writeForm(w, r, form, result.FormFields)
		return
	}

	writeJSON(w, http.StatusOK, buildReturnResponse(result))
}

// admitPart enforces the per-file upload rules and streams one part's bytes
// into the request store. A zero status means the part was admitted.
func (rt *Router) admitPart(store ports.DocumentStore, part *multipart.Part) (domain.UploadedDocument, int, string) {
	filename := part.FileName()

	mimeType := contentTypeOf(part.Header.Get("Content-Type"))
	if !domain.AllowedMimeTypes[mimeType] {
		return domain.UploadedDocument{}, http.StatusBadRequest,
			fmt.Sprintf("file %s has unsupported type %s", filename, mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(part, rt.limits.MaxFileSizeBytes+1))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.UploadedDocument{}, http.StatusRequestEntityTooLarge, "request body too large"
		}
		return domain.UploadedDocument{}, http.StatusBadRequest,
			fmt.Sprintf("file %s could not be read", filename)
	}
	if int64(len(data)) > rt.limits.MaxFileSizeBytes {
		return domain.UploadedDocument{}, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file %s exceeds the %d byte limit", filename, rt.limits.MaxFileSizeBytes)
	}
	if len(data) == 0 {
		return domain.UploadedDocument{}, http.StatusBadRequest,
			fmt.Sprintf("file %s is empty", filename)
	}

	id := uuid.NewString()
	if err := store.Put(id, data); err != nil {
		return domain.UploadedDocument{}, http.StatusInternalServerError, "failed to buffer upload"
	}

	return domain.UploadedDocument{
		ID:       id,
		Filename: filename,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}, 0, ""
}

func (rt *Router) writeForm(w http.ResponseWriter, r *http.Request, form string, fields map[string]string) {
	populator, ok := rt.populators[form]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown form target %q", form)})
		return
	}

	rendered, err := populator.Populate(r.Context(), fields)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": displayMessage(err)})
		return
	}

	contentType := "text/plain; charset=utf-8"
	filename := "tax_return_summary.txt"
	if form == "workbook" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "tax_return_summary.xlsx"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered)
}

func buildReturnResponse(result *domain.ReturnResult) returnResponse {
	computation := result.Computation
	response := returnResponse{
		TaxpayerName:       computation.TaxpayerName,
		MaskedIdentifier:   computation.MaskedIdentifier.String(),
		FilingStatus:       string(computation.FilingStatus),
		TotalIncome:        computation.TotalIncome.StringFixed(2),
		AdjustedGross:      computation.AdjustedGross.StringFixed(2),
		StandardDeduction:  computation.StandardDeduction.StringFixed(2),
		TaxableIncome:      computation.TaxableIncome.StringFixed(2),
		TaxOwed:            computation.TaxOwed.StringFixed(2),
		FederalWithholding: computation.FederalWithholding.StringFixed(2),
		RefundOrOwed:       computation.RefundOrOwed.StringFixed(2),
		IsRefund:           computation.IsRefund,
		FormFields:         result.FormFields,
	}
	for _, outcome := range result.Documents {
		report := documentReport{
			DocumentID:   outcome.DocumentID,
			Filename:     outcome.Filename,
			Status:       string(outcome.Status),
			DocumentType: string(outcome.DocumentType),
			Error:        outcome.Error,
		}
		for _, issue := range outcome.Issues {
			report.Issues = append(report.Issues, issueReport{
				Field:    issue.Field,
				Code:     string(issue.Code),
				Severity: string(issue.Severity),
				Message:  issue.Message,
			})
		}
		response.Documents = append(response.Documents, report)
	}
	return response
}

func contentTypeOf(header string) string {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil {
		header = mediaType
	}
	return strings.ToLower(strings.TrimSpace(header))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
