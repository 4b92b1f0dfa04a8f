package processors

import (
	"strings"

	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/models"
	"github.com/username/ownershipmap/src/parsers/ownership"
)

// HierarchyLinker associates portfolio rows with their owning holders.
// The export carries no explicit foreign key, so the parent is recovered
// from the row's holder-name field via the HolderMatcher strategies.
type HierarchyLinker struct {
	ticker string
}

func NewHierarchyLinker(ticker string) *HierarchyLinker {
	return &HierarchyLinker{ticker: ticker}
}

// Link builds Portfolios from classified portfolio rows. A portfolio either
// resolves to exactly one holder or is dropped and counted; it is never
// attached to a holder outside the matcher's resolution order. The returned
// count is the number of unresolved portfolio rows.
func (l *HierarchyLinker) Link(rows []ownership.RawRow, holders []models.Holder) ([]models.Portfolio, int) {
	names := make([]string, len(holders))
	for i, h := range holders {
		names[i] = h.HolderName
	}
	matcher := NewHolderMatcher(names)

	var portfolios []models.Portfolio
	unresolved := 0

	for _, row := range rows {
		portfolioName := strings.TrimSpace(row.PortfolioName)
		if isPlaceholder(portfolioName) {
			continue
		}

		holderField, ok := ResolveHolderName(row)
		if !ok {
			unresolved++
			continue
		}

		pos, strategy := matcher.Match(holderField)
		if pos < 0 {
			unresolved++
			logger.L.Warn("No holder found for portfolio", "portfolio", portfolioName, "holder", holderField)
			continue
		}
		if strategy == MatchSubstring {
			logger.L.Debug("Portfolio holder resolved by substring match", "portfolio", portfolioName, "holderField", holderField, "holder", matcher.Name(pos))
		}

		percentOut, capped := ownership.CleanNumericChecked(row.PercentOut, true)
		if capped {
			logger.L.Warn("Capping % Out for portfolio", "portfolio", portfolioName, "raw", row.PercentOut)
		}

		// An empty % Portfolio cell is absent, which is not the same value
		// as an explicit zero.
		var percentPortfolio *float64
		if strings.TrimSpace(row.PercentPortfolio) != "" {
			v, capped := ownership.CleanNumericChecked(row.PercentPortfolio, true)
			if capped {
				logger.L.Warn("Capping % Portfolio for portfolio", "portfolio", portfolioName, "raw", row.PercentPortfolio)
			}
			percentPortfolio = &v
		}

		portfolio := models.Portfolio{
			HolderName:       matcher.Name(pos),
			Ticker:           l.ticker,
			PortfolioName:    portfolioName,
			Position:         ownership.CleanInt(row.Position),
			PercentOut:       percentOut,
			PercentPortfolio: percentPortfolio,
			LatestChange:     ownership.CleanInt(row.LatestChg),
			Source:           NormalizeText(row.Source),
			TreeLevel:        row.TreeLevel,
		}
		if date, ok := ownership.ParseFilingDate(row.FilingDate); ok {
			portfolio.FilingDate = &date
		}
		portfolios = append(portfolios, portfolio)
	}
	return portfolios, unresolved
}
