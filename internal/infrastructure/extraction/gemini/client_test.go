package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/greengrowth/taxagent/internal/core/domain"
	"github.com/greengrowth/taxagent/internal/infrastructure/resilience"
)

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Second,
		RetryMaxBackoff:     4 * time.Second,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
		Sleep: func(context.Context, time.Duration) error {
			return nil
		},
	})
}

func candidateResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	out, _ := json.Marshal(payload)
	return string(out)
}

const validRecordJSON = `{"document_type":"W-2","taxpayer_name":"Jane Q. Public","ssn":"123-45-6789","filing_status":"single","wages":5207.78,"interest_income":0,"other_income":0,"federal_withholding":55.12,"payer_name":"","employer_ein":"","confidence":0.95}`

func TestExtractFieldsParsesModelResponse(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(candidateResponse(validRecordJSON)))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "test-key", Model: "gemini-1.5-flash"}, nil, newTestExecutor())
	record, err := client.ExtractFields(context.Background(), "W-2 Wage and Tax Statement ...", domain.DocTypeW2)
	if err != nil {
		t.Fatalf("ExtractFields() error = %v", err)
	}
	if gotPath != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header %q", gotKey)
	}
	if record.TaxpayerName != "Jane Q. Public" {
		t.Fatalf("taxpayer name = %q", record.TaxpayerName)
	}
	if !record.Wages.Valid || record.Wages.Decimal.StringFixed(2) != "5207.78" {
		t.Fatalf("wages = %+v", record.Wages)
	}
}

func TestExtractFieldsRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(candidateResponse(validRecordJSON)))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, nil, newTestExecutor())
	record, err := client.ExtractFields(context.Background(), "some document text", domain.DocTypeOther)
	if err != nil {
		t.Fatalf("ExtractFields() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 requests, got %d", attempts)
	}
	if record.DocumentType != domain.DocTypeW2 {
		t.Fatalf("document type = %s", record.DocumentType)
	}
}

func TestExtractFieldsQuotaExhaustionDoesNotRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "quota exceeded for project", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, nil, newTestExecutor())
	_, err := client.ExtractFields(context.Background(), "some document text", domain.DocTypeOther)
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("quota exhaustion must not retry, got %d requests", attempts)
	}
}

func TestExtractFieldsBackpressure429Retries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(candidateResponse(validRecordJSON)))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, nil, newTestExecutor())
	if _, err := client.ExtractFields(context.Background(), "some document text", domain.DocTypeOther); err != nil {
		t.Fatalf("ExtractFields() error = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected retry after backpressure, got %d requests", attempts)
	}
}

func TestExtractFieldsReformulatesSchemaViolationOnce(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		prompts = append(prompts, payload.Contents[0].Parts[0].Text)
		// Valid JSON, but the required document_type key never appears.
		_, _ = w.Write([]byte(candidateResponse(`{"taxpayer_name":"A","ssn":"","wages":100}`)))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, nil, newTestExecutor())
	_, err := client.ExtractFields(context.Background(), "some document text", domain.DocTypeOther)
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed-response error, got %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("expected exactly one reformulation round trip, got %d requests", len(prompts))
	}
	if !strings.Contains(prompts[1], "did not match the required JSON shape") {
		t.Fatalf("second request should carry the reformulation prompt: %s", prompts[1])
	}
}

func TestPingReportsUnreachableService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1beta/models/m" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"name":"models/m"}`))
	}))

	client := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, nil, newTestExecutor())
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	server.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error against closed server")
	}
}
