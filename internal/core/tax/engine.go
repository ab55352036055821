package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// Engine computes federal tax liability from an aggregated taxpayer profile.
// It is pure computation over immutable tables: no I/O, no locking, and it
// must not fail on any profile the aggregator can produce.
type Engine struct {
	tables *Tables
}

func NewEngine(tables *Tables) *Engine {
	return &Engine{tables: tables}
}

// Compute derives AGI, taxable income, bracket tax and the refund/amount-due
// figure. All currency math is exact decimal, rounded half-up to 2 fractional
// digits. The returned result carries only the masked identifier.
func (e *Engine) Compute(profile domain.TaxpayerProfile) (domain.TaxComputationResult, error) {
	deduction, ok := e.tables.Deductions[profile.FilingStatus]
	if !ok {
		return domain.TaxComputationResult{}, domain.WrapError(
			domain.ErrInvariant,
			"compute tax",
			fmt.Errorf("no deduction table for filing status %q", profile.FilingStatus),
		)
	}
	brackets, ok := e.tables.Brackets[profile.FilingStatus]
	if !ok {
		return domain.TaxComputationResult{}, domain.WrapError(
			domain.ErrInvariant,
			"compute tax",
			fmt.Errorf("no bracket table for filing status %q", profile.FilingStatus),
		)
	}

	totalIncome := profile.TotalWages.
		Add(profile.TotalInterest).
		Add(profile.TotalOtherIncome).
		Round(2)

	// No adjustments in scope: AGI equals total income.
	agi := totalIncome

	taxableIncome := decimal.Max(decimal.Zero, agi.Sub(deduction))
	taxOwed := bracketTax(taxableIncome, brackets)

	if taxableIncome.IsNegative() || taxOwed.IsNegative() {
		return domain.TaxComputationResult{}, domain.WrapError(
			domain.ErrInvariant,
			"compute tax",
			fmt.Errorf("negative taxable income %s or tax %s", taxableIncome, taxOwed),
		)
	}

	refundOrOwed := profile.TotalWithholding.Sub(taxOwed).Round(2)

	return domain.TaxComputationResult{
		TaxpayerName:       profile.TaxpayerName,
		MaskedIdentifier:   domain.MaskIdentifier(profile.Identifier),
		FilingStatus:       profile.FilingStatus,
		TotalIncome:        totalIncome,
		AdjustedGross:      agi,
		StandardDeduction:  deduction.Round(2),
		TaxableIncome:      taxableIncome.Round(2),
		TaxOwed:            taxOwed,
		FederalWithholding: profile.TotalWithholding.Round(2),
		RefundOrOwed:       refundOrOwed,
		IsRefund:           refundOrOwed.Sign() > 0,
	}, nil
}

// bracketTax evaluates the piecewise marginal-rate function: the bracket whose
// [Lower, Upper) range contains taxableIncome contributes Base plus its rate
// applied to the excess over Lower.
func bracketTax(taxableIncome decimal.Decimal, brackets []Bracket) decimal.Decimal {
	if taxableIncome.Sign() <= 0 {
		return decimal.Zero.Round(2)
	}
	for _, bracket := range brackets {
		if bracket.Unbounded || taxableIncome.Cmp(bracket.Upper) < 0 {
			excess := taxableIncome.Sub(bracket.Lower)
			return bracket.Base.Add(bracket.Rate.Mul(excess)).Round(2)
		}
	}
	// Unreachable: every table ends in an unbounded bracket.
	return decimal.Zero.Round(2)
}
