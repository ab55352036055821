package domain

import "github.com/shopspring/decimal"

// TaxpayerProfile is the per-request aggregate across all surviving records.
// Income fields are sums; identity fields are resolved first-non-empty with
// conflict detection. Identifier is unmasked until the orchestrator clears it
// after the computation result exists.
type TaxpayerProfile struct {
	TaxpayerName     string
	Identifier       string
	FilingStatus     FilingStatus
	TotalWages       decimal.Decimal
	TotalInterest    decimal.Decimal
	TotalOtherIncome decimal.Decimal
	TotalWithholding decimal.Decimal
	DocumentCount    int
	DocumentTypes    []DocumentType
}

// ClearIdentity drops the unmasked identifier once it is no longer needed.
func (p *TaxpayerProfile) ClearIdentity() {
	p.Identifier = ""
}
