package processors

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/username/ownershipmap/src/models"
)

// DatasetAssembler packages aggregated holders and linked portfolios into
// the final Dataset handed to the upsert transport.
type DatasetAssembler struct {
	ticker      string
	companyName string
}

func NewDatasetAssembler(ticker, companyName string) *DatasetAssembler {
	return &DatasetAssembler{ticker: ticker, companyName: companyName}
}

// round2 rounds a percentage to two decimal places. Rounding happens
// exactly once, here at assembly, never at intermediate pipeline stages.
func round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}

// Assemble builds the Dataset with summary statistics. The summary's total
// percent outstanding is a sum across holders and may exceed 100; unlike
// the per-record values it is not clamped.
func (a *DatasetAssembler) Assemble(holders []models.Holder, portfolios []models.Portfolio) models.Dataset {
	outHolders := make([]models.Holder, len(holders))
	var totalShares int64
	var totalPercentOut float64
	for i, h := range holders {
		h.TotalPercentOut = round2(h.TotalPercentOut)
		outHolders[i] = h
		totalShares += h.TotalPosition
		totalPercentOut += h.TotalPercentOut
	}

	outPortfolios := make([]models.Portfolio, len(portfolios))
	for i, p := range portfolios {
		p.PercentOut = round2(p.PercentOut)
		if p.PercentPortfolio != nil {
			v := round2(*p.PercentPortfolio)
			p.PercentPortfolio = &v
		}
		outPortfolios[i] = p
	}

	return models.Dataset{
		RunID:         uuid.NewString(),
		Ticker:        a.ticker,
		CompanyName:   a.companyName,
		TransformedAt: time.Now().UTC(),
		Holders:       outHolders,
		Portfolios:    outPortfolios,
		Summary: models.Summary{
			TotalHolders:    len(outHolders),
			TotalPortfolios: len(outPortfolios),
			TotalShares:     totalShares,
			TotalPercentOut: round2(totalPercentOut),
		},
	}
}
