package usecase

import (
	"errors"
	"fmt"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// Aggregator folds the surviving validated records into one taxpayer profile.
// Income fields sum; identity fields resolve first-non-empty, and two
// different non-empty identifiers abort the request rather than guess.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Aggregate(records []domain.ValidatedRecord) (domain.TaxpayerProfile, error) {
	const op = "aggregate records"

	if len(records) == 0 {
		return domain.TaxpayerProfile{}, domain.WrapError(
			domain.ErrNoValidDocuments,
			op,
			errors.New("no records survived validation"),
		)
	}

	var profile domain.TaxpayerProfile
	for _, record := range records {
		if record.TaxpayerName != "" && profile.TaxpayerName == "" {
			profile.TaxpayerName = record.TaxpayerName
		}
		if record.Identifier != "" {
			if profile.Identifier == "" {
				profile.Identifier = record.Identifier
			} else if profile.Identifier != record.Identifier {
				return domain.TaxpayerProfile{}, domain.WrapError(
					domain.ErrConflictingIdentity,
					op,
					fmt.Errorf("documents carry identifiers ending %s and %s",
						lastFour(profile.Identifier), lastFour(record.Identifier)),
				)
			}
		}
		if record.FilingStatus != "" && profile.FilingStatus == "" {
			profile.FilingStatus = record.FilingStatus
		}

		profile.TotalWages = profile.TotalWages.Add(record.Wages)
		profile.TotalInterest = profile.TotalInterest.Add(record.InterestIncome)
		profile.TotalOtherIncome = profile.TotalOtherIncome.Add(record.OtherIncome)
		profile.TotalWithholding = profile.TotalWithholding.Add(record.FederalWithholding)
		profile.DocumentCount++
		profile.DocumentTypes = append(profile.DocumentTypes, record.DocumentType)
	}

	if profile.FilingStatus == "" {
		profile.FilingStatus = domain.FilingSingle
	}

	profile.TotalWages = profile.TotalWages.Round(2)
	profile.TotalInterest = profile.TotalInterest.Round(2)
	profile.TotalOtherIncome = profile.TotalOtherIncome.Round(2)
	profile.TotalWithholding = profile.TotalWithholding.Round(2)
	return profile, nil
}

// lastFour keeps error messages display-safe: never more than the last four
// identifier digits.
func lastFour(identifier string) string {
	if len(identifier) <= 4 {
		return identifier
	}
	return identifier[len(identifier)-4:]
}
