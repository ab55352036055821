package domain

import "github.com/shopspring/decimal"

// TaxComputationResult is the final pipeline output. It carries only the
// masked identifier; taxable income and tax owed are never negative.
type TaxComputationResult struct {
	TaxpayerName       string
	MaskedIdentifier   MaskedIdentifier
	FilingStatus       FilingStatus
	TotalIncome        decimal.Decimal
	AdjustedGross      decimal.Decimal
	StandardDeduction  decimal.Decimal
	TaxableIncome      decimal.Decimal
	TaxOwed            decimal.Decimal
	FederalWithholding decimal.Decimal
	RefundOrOwed       decimal.Decimal
	IsRefund           bool
}

// FormFields flattens the result into the name→value mapping consumed by a
// FormPopulator. Every value is display-safe.
func (r TaxComputationResult) FormFields() map[string]string {
	return map[string]string{
		"taxpayer_name":         r.TaxpayerName,
		"masked_identifier":     r.MaskedIdentifier.String(),
		"filing_status":         string(r.FilingStatus),
		"total_income":          r.TotalIncome.StringFixed(2),
		"adjusted_gross_income": r.AdjustedGross.StringFixed(2),
		"standard_deduction":    r.StandardDeduction.StringFixed(2),
		"taxable_income":        r.TaxableIncome.StringFixed(2),
		"tax_owed":              r.TaxOwed.StringFixed(2),
		"federal_withholding":   r.FederalWithholding.StringFixed(2),
		"refund_or_owed":        r.RefundOrOwed.StringFixed(2),
	}
}

type DocumentStatus string

const (
	DocStatusProcessed DocumentStatus = "processed"
	DocStatusFailed    DocumentStatus = "failed"
)

// DocumentOutcome reports how one uploaded document fared in the pipeline.
// Error holds a display-safe message for failed documents.
type DocumentOutcome struct {
	DocumentID   string
	Filename     string
	Status       DocumentStatus
	DocumentType DocumentType
	Issues       []ValidationIssue
	Error        string
}

// ReturnResult is the full per-request outcome: the computation plus the
// per-document report, so callers can surface partial success.
type ReturnResult struct {
	Computation TaxComputationResult
	Documents   []DocumentOutcome
	FormFields  map[string]string
}
