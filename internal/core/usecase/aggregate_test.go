package usecase

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

func validated(t *testing.T, docType domain.DocumentType, identifier string, mutate func(*domain.ValidatedRecord)) domain.ValidatedRecord {
	t.Helper()
	record := domain.ValidatedRecord{
		DocumentType: docType,
		TaxpayerName: "Jane Q. Public",
		Identifier:   identifier,
	}
	if mutate != nil {
		mutate(&record)
	}
	return record
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestAggregateSumsAcrossDocuments(t *testing.T) {
	aggregator := NewAggregator()
	records := []domain.ValidatedRecord{
		validated(t, domain.DocTypeW2, "123456789", func(r *domain.ValidatedRecord) {
			r.FilingStatus = domain.FilingSingle
			r.Wages = dec(t, "60000")
			r.FederalWithholding = dec(t, "6000")
		}),
		validated(t, domain.DocType1099INT, "123456789", func(r *domain.ValidatedRecord) {
			r.InterestIncome = dec(t, "1000")
		}),
		validated(t, domain.DocType1099NEC, "", func(r *domain.ValidatedRecord) {
			r.OtherIncome = dec(t, "250.25")
		}),
	}

	profile, err := aggregator.Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if profile.TotalWages.StringFixed(2) != "60000.00" {
		t.Fatalf("wages = %s", profile.TotalWages)
	}
	if profile.TotalInterest.StringFixed(2) != "1000.00" {
		t.Fatalf("interest = %s", profile.TotalInterest)
	}
	if profile.TotalOtherIncome.StringFixed(2) != "250.25" {
		t.Fatalf("other income = %s", profile.TotalOtherIncome)
	}
	if profile.TotalWithholding.StringFixed(2) != "6000.00" {
		t.Fatalf("withholding = %s", profile.TotalWithholding)
	}
	if profile.Identifier != "123456789" {
		t.Fatalf("identifier = %q", profile.Identifier)
	}
	if profile.FilingStatus != domain.FilingSingle {
		t.Fatalf("filing status = %q", profile.FilingStatus)
	}
	if profile.DocumentCount != 3 || len(profile.DocumentTypes) != 3 {
		t.Fatalf("document count = %d, types = %v", profile.DocumentCount, profile.DocumentTypes)
	}
}

func TestAggregateConflictingIdentifiersAbort(t *testing.T) {
	aggregator := NewAggregator()
	records := []domain.ValidatedRecord{
		validated(t, domain.DocTypeW2, "123456789", nil),
		validated(t, domain.DocType1099INT, "987654321", nil),
	}

	_, err := aggregator.Aggregate(records)
	if !domain.IsKind(err, domain.ErrConflictingIdentity) {
		t.Fatalf("expected conflicting-identity error, got %v", err)
	}
	// The error message must never carry more than the last four digits.
	if msg := err.Error(); contains9Digits(msg) {
		t.Fatalf("error leaks a full identifier: %s", msg)
	}
}

func contains9Digits(s string) bool {
	run := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			run++
			if run >= 9 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func TestAggregateTotalsDoNotDependOnDocumentOrder(t *testing.T) {
	aggregator := NewAggregator()
	records := []domain.ValidatedRecord{
		validated(t, domain.DocTypeW2, "123456789", func(r *domain.ValidatedRecord) {
			r.Wages = dec(t, "52077.80")
			r.FederalWithholding = dec(t, "4100.33")
		}),
		validated(t, domain.DocType1099INT, "123456789", func(r *domain.ValidatedRecord) {
			r.InterestIncome = dec(t, "312.47")
			r.FederalWithholding = dec(t, "15.00")
		}),
		validated(t, domain.DocType1099MISC, "123456789", func(r *domain.ValidatedRecord) {
			r.OtherIncome = dec(t, "980.00")
		}),
	}
	reversed := []domain.ValidatedRecord{records[2], records[1], records[0]}

	forward, err := aggregator.Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate(forward) error = %v", err)
	}
	backward, err := aggregator.Aggregate(reversed)
	if err != nil {
		t.Fatalf("Aggregate(reversed) error = %v", err)
	}

	if !forward.TotalWages.Equal(backward.TotalWages) ||
		!forward.TotalInterest.Equal(backward.TotalInterest) ||
		!forward.TotalOtherIncome.Equal(backward.TotalOtherIncome) ||
		!forward.TotalWithholding.Equal(backward.TotalWithholding) {
		t.Fatalf("totals differ by order: %+v vs %+v", forward, backward)
	}
	if forward.TotalWithholding.StringFixed(2) != "4115.33" {
		t.Fatalf("withholding = %s", forward.TotalWithholding)
	}
}

func TestAggregateEmptyInputIsNoValidDocuments(t *testing.T) {
	aggregator := NewAggregator()
	if _, err := aggregator.Aggregate(nil); !domain.IsKind(err, domain.ErrNoValidDocuments) {
		t.Fatalf("expected no-valid-documents error, got %v", err)
	}
}

func TestAggregateDefaultsFilingStatusToSingle(t *testing.T) {
	aggregator := NewAggregator()
	profile, err := aggregator.Aggregate([]domain.ValidatedRecord{
		validated(t, domain.DocTypeW2, "123456789", nil),
	})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if profile.FilingStatus != domain.FilingSingle {
		t.Fatalf("filing status = %q, want single default", profile.FilingStatus)
	}
}

func TestAggregateKeepsFirstNonEmptyIdentity(t *testing.T) {
	aggregator := NewAggregator()
	records := []domain.ValidatedRecord{
		validated(t, domain.DocType1099INT, "", func(r *domain.ValidatedRecord) {
			r.TaxpayerName = ""
		}),
		validated(t, domain.DocTypeW2, "123456789", func(r *domain.ValidatedRecord) {
			r.FilingStatus = domain.FilingHeadOfHousehold
		}),
	}

	profile, err := aggregator.Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if profile.TaxpayerName != "Jane Q. Public" {
		t.Fatalf("name = %q", profile.TaxpayerName)
	}
	if profile.Identifier != "123456789" {
		t.Fatalf("identifier = %q", profile.Identifier)
	}
	if profile.FilingStatus != domain.FilingHeadOfHousehold {
		t.Fatalf("filing status = %q", profile.FilingStatus)
	}
}
