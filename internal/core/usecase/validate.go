package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// suspiciousAmount flags values above $10M for review without failing the
// record.
var suspiciousAmount = decimal.NewFromInt(10_000_000)

// FieldValidator checks one extracted record against the per-form field rules
// and normalizes it for aggregation. Fatal issues exclude the record; warnings
// ride along in the document outcome.
type FieldValidator struct{}

func NewFieldValidator() *FieldValidator {
	return &FieldValidator{}
}

func (v *FieldValidator) Validate(record domain.TaxRecord) (domain.ValidatedRecord, []domain.ValidationIssue) {
	var issues []domain.ValidationIssue

	if !record.DocumentType.Supported() {
		issues = append(issues, domain.ValidationIssue{
			Field:    "document_type",
			Code:     domain.IssueUnsupportedDocument,
			Severity: domain.SeverityFatal,
			Message:  "document could not be classified as a supported tax form",
		})
	}

	identifier := digitsOf(record.Identifier)
	switch {
	case record.Identifier == "":
		issues = append(issues, domain.ValidationIssue{
			Field:    "ssn",
			Code:     domain.IssueInvalidIdentifier,
			Severity: domain.SeverityWarning,
			Message:  "no taxpayer identifier found on the document",
		})
	case len(identifier) != 9:
		issues = append(issues, domain.ValidationIssue{
			Field:    "ssn",
			Code:     domain.IssueInvalidIdentifier,
			Severity: domain.SeverityFatal,
			Message:  "taxpayer identifier is not nine digits",
		})
	}

	if record.TaxpayerName == "" {
		issues = append(issues, domain.ValidationIssue{
			Field:    "taxpayer_name",
			Code:     domain.IssueMissingRequired,
			Severity: domain.SeverityWarning,
			Message:  "no taxpayer name found on the document",
		})
	}

	// Aggregation defaults an unresolved status to single; the warning tells
	// the caller the default was applied, not read off the document.
	if record.FilingStatus == "" {
		issues = append(issues, domain.ValidationIssue{
			Field:    "filing_status",
			Code:     domain.IssueMissingFilingStatus,
			Severity: domain.SeverityWarning,
			Message:  "no filing status on the document; single is assumed",
		})
	}

	issues = append(issues, v.moneyIssues(record)...)

	validated := domain.ValidatedRecord{
		DocumentType:       record.DocumentType,
		TaxpayerName:       record.TaxpayerName,
		Identifier:         identifier,
		FilingStatus:       record.FilingStatus,
		Wages:              resolveAmount(record.Wages),
		FederalWithholding: resolveAmount(record.FederalWithholding),
		InterestIncome:     resolveAmount(record.InterestIncome),
		OtherIncome:        resolveAmount(record.OtherIncome),
		PayerName:          record.PayerName,
		EmployerEIN:        record.EmployerEIN,
		Confidence:         record.Confidence,
	}
	return validated, issues
}

// moneyIssues applies the per-form required-box rules and the range checks
// shared by every money field.
func (v *FieldValidator) moneyIssues(record domain.TaxRecord) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	required := requiredMoneyFields(record.DocumentType)
	amounts := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"wages", record.Wages},
		{"federal_withholding", record.FederalWithholding},
		{"interest_income", record.InterestIncome},
		{"other_income", record.OtherIncome},
	}

	for _, amount := range amounts {
		if required[amount.field] && !amount.value.Valid {
			issues = append(issues, domain.ValidationIssue{
				Field:    amount.field,
				Code:     domain.IssueMissingRequired,
				Severity: domain.SeverityFatal,
				Message:  fmt.Sprintf("%s is required on a %s", amount.field, record.DocumentType),
			})
			continue
		}
		if !amount.value.Valid {
			continue
		}
		if amount.value.Decimal.IsNegative() {
			issues = append(issues, domain.ValidationIssue{
				Field:    amount.field,
				Code:     domain.IssueInvalidAmount,
				Severity: domain.SeverityFatal,
				Message:  fmt.Sprintf("%s is negative", amount.field),
			})
		} else if amount.value.Decimal.Cmp(suspiciousAmount) > 0 {
			issues = append(issues, domain.ValidationIssue{
				Field:    amount.field,
				Code:     domain.IssueInvalidAmount,
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("%s is unusually high and should be reviewed", amount.field),
			})
		}
	}
	return issues
}

func requiredMoneyFields(docType domain.DocumentType) map[string]bool {
	switch docType {
	case domain.DocTypeW2:
		return map[string]bool{"wages": true, "federal_withholding": true}
	case domain.DocType1099INT:
		return map[string]bool{"interest_income": true}
	case domain.DocType1099NEC, domain.DocType1099MISC, domain.DocType1099DIV:
		return map[string]bool{"other_income": true}
	default:
		return nil
	}
}

func resolveAmount(value decimal.NullDecimal) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	return value.Decimal.Round(2)
}

func digitsOf(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
