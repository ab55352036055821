package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type FilingStatus string

const (
	FilingSingle            FilingStatus = "single"
	FilingMarriedJointly    FilingStatus = "married_filing_jointly"
	FilingMarriedSeparately FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold   FilingStatus = "head_of_household"
)

// ParseFilingStatus maps an extraction-service filing status string onto the
// supported enum. ok is false for absent or unrecognized values; the caller
// decides the default.
func ParseFilingStatus(s string) (FilingStatus, bool) {
	switch FilingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case FilingSingle:
		return FilingSingle, true
	case FilingMarriedJointly:
		return FilingMarriedJointly, true
	case FilingMarriedSeparately:
		return FilingMarriedSeparately, true
	case FilingHeadOfHousehold:
		return FilingHeadOfHousehold, true
	default:
		return "", false
	}
}

// TaxRecord is the extraction-service output for one document, immutable once
// produced. Money fields are NullDecimal so the validator can distinguish "the
// document had no such box" from an actual zero amount. Identifier is the
// unmasked taxpayer identifier and must never cross an output boundary.
type TaxRecord struct {
	DocumentType       DocumentType
	TaxpayerName       string
	Identifier         string
	FilingStatus       FilingStatus
	Wages              decimal.NullDecimal
	FederalWithholding decimal.NullDecimal
	InterestIncome     decimal.NullDecimal
	OtherIncome        decimal.NullDecimal
	PayerName          string
	EmployerEIN        string
	Confidence         float64
}

// ValidatedRecord is the validator's normalized view of a TaxRecord: absent
// money boxes resolve to zero, amounts are rounded to 2 fractional digits,
// the identifier is reduced to bare digits and the filing status is resolved.
type ValidatedRecord struct {
	DocumentType       DocumentType
	TaxpayerName       string
	Identifier         string
	FilingStatus       FilingStatus
	Wages              decimal.Decimal
	FederalWithholding decimal.Decimal
	InterestIncome     decimal.Decimal
	OtherIncome        decimal.Decimal
	PayerName          string
	EmployerEIN        string
	Confidence         float64
}
