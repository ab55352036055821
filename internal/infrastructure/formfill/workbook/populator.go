// Package workbook renders the populated return as an xlsx workbook for
// preparers who post-process the numbers in a spreadsheet.
package workbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

const sheetName = "Tax Summary"

var rowOrder = []struct {
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

func (p *Populator) Populate(ctx context.Context, fields map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "populate workbook", errors.New("nil field mapping"))
	}

	identifier := fields["masked_identifier"]
	if string(domain.MaskIdentifier(identifier)) != identifier {
		return nil, domain.WrapError(
			domain.ErrInvariant,
			"populate workbook",
			errors.New("identifier reached the form layer unmasked"),
		)
	}

	file := excelize.NewFile()
	defer file.Close()

	index, err := file.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := file.SetCellValue(sheetName, "A1", "Field"); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := file.SetCellValue(sheetName, "B1", "Value"); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range rowOrder {
		cellA := fmt.Sprintf("A%d", i+2)
		cellB := fmt.Sprintf("B%d", i+2)
		if err := file.SetCellValue(sheetName, cellA, row.label); err != nil {
			return nil, fmt.Errorf("write row %s: %w", row.key, err)
		}
		if err := file.SetCellValue(sheetName, cellB, fields[row.key]); err != nil {
			return nil, fmt.Errorf("write row %s: %w", row.key, err)
		}
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buffer.Bytes(), nil
}
