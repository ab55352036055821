// Package summary renders the populated return as a plain-text summary form,
// the always-available output target.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// fieldOrder fixes the rendering order so the output is byte-stable for the
// same computation.
var fieldOrder = []struct {
	key   string
	label string
}{
	{"taxpayer_name", "Taxpayer Name"},
	{"masked_identifier", "Taxpayer Identifier"},
	{"filing_status", "Filing Status"},
	{"total_income", "Total Income"},
	{"adjusted_gross_income", "Adjusted Gross Income"},
	{"standard_deduction", "Standard Deduction"},
	{"taxable_income", "Taxable Income"},
	{"tax_owed", "Federal Tax"},
	{"federal_withholding", "Federal Withholding"},
	{"refund_or_owed", "Refund / Amount Due"},
}

type Populator struct{}

func New() *Populator {
	return &Populator{}
}

// Populate renders the field mapping as a fixed-layout text form. It refuses
// any mapping whose identifier is not already masked: masking happens upstream
// and an unmasked value reaching this layer is a pipeline bug.
func (p *Populator) Populate(ctx context.Context, fields map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "populate form", errors.New("nil field mapping"))
	}

	identifier := fields["masked_identifier"]
	if string(domain.MaskIdentifier(identifier)) != identifier {
		return nil, domain.WrapError(
			domain.ErrInvariant,
			"populate form",
			errors.New("identifier reached the form layer unmasked"),
		)
	}

	var builder strings.Builder
	builder.WriteString("FEDERAL TAX RETURN SUMMARY (TAX YEAR 2024)\n")
	builder.WriteString(strings.Repeat("=", 42) + "\n\n")
	for _, field := range fieldOrder {
		builder.WriteString(fmt.Sprintf("%-24s %s\n", field.label+":", fields[field.key]))
	}
	return []byte(builder.String()), nil
}
