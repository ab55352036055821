package tax

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

//go:embed tables.yaml
var tablesYAML []byte

// Bracket is one marginal-rate band [Lower, Upper). Base is the total tax on
// income below Lower. The top band of each table is unbounded.
type Bracket struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Rate      decimal.Decimal
	Base      decimal.Decimal
	Unbounded bool
}

// Tables holds the immutable bracket and deduction tables for one tax year.
// Loaded once at startup and only ever read after that.
type Tables struct {
	Year       int
	Deductions map[domain.FilingStatus]decimal.Decimal
	Brackets   map[domain.FilingStatus][]Bracket
}

type tablesFile struct {
	Year               int                     `yaml:"year"`
	StandardDeductions map[string]string       `yaml:"standard_deductions"`
	Brackets           map[string][]bracketRow `yaml:"brackets"`
}

type bracketRow struct {
	Upper string `yaml:"upper"`
	Rate  string `yaml:"rate"`
}

// LoadTables parses the embedded bracket/deduction tables and derives the
// cumulative base amount of every bracket.
func LoadTables() (*Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(tablesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse tax tables: %w", err)
	}

	tables := &Tables{
		Year:       file.Year,
		Deductions: make(map[domain.FilingStatus]decimal.Decimal, len(file.StandardDeductions)),
		Brackets:   make(map[domain.FilingStatus][]Bracket, len(file.Brackets)),
	}

	for status, raw := range file.StandardDeductions {
		filing, ok := domain.ParseFilingStatus(status)
		if !ok {
			return nil, fmt.Errorf("unknown filing status %q in deduction table", status)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("deduction for %s: %w", status, err)
		}
		tables.Deductions[filing] = amount
	}

	for status, rows := range file.Brackets {
		filing, ok := domain.ParseFilingStatus(status)
		if !ok {
			return nil, fmt.Errorf("unknown filing status %q in bracket table", status)
		}
		brackets, err := buildBrackets(rows)
		if err != nil {
			return nil, fmt.Errorf("brackets for %s: %w", status, err)
		}
		tables.Brackets[filing] = brackets
	}

	for filing := range tables.Deductions {
		if _, ok := tables.Brackets[filing]; !ok {
			return nil, fmt.Errorf("filing status %s has a deduction but no brackets", filing)
		}
	}

	return tables, nil
}

func buildBrackets(rows []bracketRow) ([]Bracket, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty bracket list")
	}

	brackets := make([]Bracket, 0, len(rows))
	lower := decimal.Zero
	base := decimal.Zero

	for i, row := range rows {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return nil, fmt.Errorf("row %d rate: %w", i, err)
		}

		bracket := Bracket{Lower: lower, Rate: rate, Base: base}
		last := i == len(rows)-1

		if row.Upper == "" {
			if !last {
				return nil, fmt.Errorf("row %d: only the top bracket may be unbounded", i)
			}
			bracket.Unbounded = true
			brackets = append(brackets, bracket)
			break
		}
		if last {
			return nil, fmt.Errorf("top bracket must be unbounded")
		}

		upper, err := decimal.NewFromString(row.Upper)
		if err != nil {
			return nil, fmt.Errorf("row %d upper bound: %w", i, err)
		}
		if upper.Cmp(lower) <= 0 {
			return nil, fmt.Errorf("row %d: upper bound %s not above lower bound %s", i, upper, lower)
		}

		bracket.Upper = upper
		brackets = append(brackets, bracket)

		base = base.Add(rate.Mul(upper.Sub(lower)))
		lower = upper
	}

	return brackets, nil
}
