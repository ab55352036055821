package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// ErrNotJSON marks a model response that contains no parseable JSON object at
// all. Callers treat it as transient and retry the request.
var ErrNotJSON = errors.New("response is not a JSON object")

// SchemaError marks a response that parsed as JSON but violates the required
// record shape. Callers reformulate once, then give up on the document.
type SchemaError struct {
	Field  string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response schema violation: field %q: %s", e.Field, e.Detail)
}

// IsSchemaViolation reports whether err stems from a shape-valid-JSON but
// schema-invalid response.
func IsSchemaViolation(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// rawRecord mirrors the JSON shape requested by the prompt. Required keys are
// pointers so a missing key is distinguishable from an empty value.
type rawRecord struct {
	DocumentType *string    `json:"document_type"`
	TaxpayerName *string    `json:"taxpayer_name"`
	SSN          *string    `json:"ssn"`
	FilingStatus string     `json:"filing_status"`
	Wages        moneyValue `json:"wages"`
	Interest     moneyValue `json:"interest_income"`
	OtherIncome  moneyValue `json:"other_income"`
	Withholding  moneyValue `json:"federal_withholding"`
	PayerName    string     `json:"payer_name"`
	EmployerEIN  string     `json:"employer_ein"`
	Confidence   float64    `json:"confidence"`
}

// ParseRecord turns a raw model response into a TaxRecord. It tolerates the
// wrappers models habitually add (markdown fences, prose around the object)
// but is strict about the record shape itself.
func ParseRecord(raw string) (domain.TaxRecord, error) {
	cleaned := extractJSONObject(stripFences(raw))
	if cleaned == "" {
		return domain.TaxRecord{}, ErrNotJSON
	}

	var rec rawRecord
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		var moneyErr *moneyError
		if errors.As(err, &moneyErr) {
			return domain.TaxRecord{}, &SchemaError{Field: "money", Detail: moneyErr.detail}
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.TaxRecord{}, &SchemaError{Field: typeErr.Field, Detail: "wrong JSON type"}
		}
		return domain.TaxRecord{}, ErrNotJSON
	}

	if rec.DocumentType == nil {
		return domain.TaxRecord{}, &SchemaError{Field: "document_type", Detail: "missing"}
	}
	if rec.TaxpayerName == nil {
		return domain.TaxRecord{}, &SchemaError{Field: "taxpayer_name", Detail: "missing"}
	}
	if rec.SSN == nil {
		return domain.TaxRecord{}, &SchemaError{Field: "ssn", Detail: "missing"}
	}

	record := domain.TaxRecord{
		DocumentType:       domain.ParseDocumentType(*rec.DocumentType),
		TaxpayerName:       strings.TrimSpace(*rec.TaxpayerName),
		Identifier:         strings.TrimSpace(*rec.SSN),
		PayerName:          strings.TrimSpace(rec.PayerName),
		EmployerEIN:        strings.TrimSpace(rec.EmployerEIN),
		Confidence:         rec.Confidence,
		Wages:              rec.Wages.NullDecimal,
		InterestIncome:     rec.Interest.NullDecimal,
		OtherIncome:        rec.OtherIncome.NullDecimal,
		FederalWithholding: rec.Withholding.NullDecimal,
	}
	if status, ok := domain.ParseFilingStatus(rec.FilingStatus); ok {
		record.FilingStatus = status
	}
	return record, nil
}

// stripFences removes a leading ```json (or bare ```) fence and a trailing
// ``` fence, the way models wrap JSON despite instructions not to.
func stripFences(raw string) string {
	out := strings.TrimSpace(raw)
	if strings.HasPrefix(out, "```json") {
		out = out[len("```json"):]
	} else if strings.HasPrefix(out, "```") {
		out = out[len("```"):]
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}

type moneyError struct {
	detail string
}

func (e *moneyError) Error() string { return e.detail }

// moneyValue accepts the monetary encodings models actually produce: JSON
// numbers, null, and strings with currency decoration ("$1,234.56",
// "(55.12)"). Absent or null fields stay unset.
type moneyValue struct {
	decimal.NullDecimal
}

func (m *moneyValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		m.Valid = false
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &moneyError{detail: "invalid string"}
		}
		cleaned := cleanCurrency(s)
		if cleaned == "" {
			m.Valid = false
			return nil
		}
		value, err := decimal.NewFromString(cleaned)
		if err != nil {
			return &moneyError{detail: fmt.Sprintf("unparseable amount %q", s)}
		}
		m.Decimal = value
		m.Valid = true
		return nil
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return &moneyError{detail: fmt.Sprintf("unparseable amount %s", trimmed)}
	}
	m.Decimal = value
	m.Valid = true
	return nil
}

// cleanCurrency strips dollar signs, thousands separators and whitespace, and
// converts accounting-style parentheses to a leading minus.
func cleanCurrency(s string) string {
	out := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(out, "(") && strings.HasSuffix(out, ")") {
		negative = true
		out = out[1 : len(out)-1]
	}
	out = strings.ReplaceAll(out, "$", "")
	out = strings.ReplaceAll(out, ",", "")
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	if negative {
		out = "-" + out
	}
	return out
}
