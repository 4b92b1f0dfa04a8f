package processors

import (
	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/models"
	"github.com/username/ownershipmap/src/parsers/ownership"
)

// HolderProcessor collapses repeated holder rows into one Holder per
// distinct name, preserving first-seen order.
type HolderProcessor struct {
	ticker string
}

func NewHolderProcessor(ticker string) *HolderProcessor {
	return &HolderProcessor{ticker: ticker}
}

// Aggregate builds Holders from classified holder rows.
//
// The first occurrence of a name creates the Holder and freezes its
// classification attributes. Later occurrences of the same name represent
// the same stake observed at a different tree depth: positions and latest
// changes are summed, but % Out is never summed — the maximum observed
// value is kept.
func (p *HolderProcessor) Aggregate(rows []ownership.RawRow) []models.Holder {
	var holders []models.Holder
	byName := make(map[string]int) // holder name -> index into holders

	for _, row := range rows {
		name, ok := ResolveHolderName(row)
		if !ok {
			continue
		}

		position := ownership.CleanInt(row.Position)
		percentOut, capped := ownership.CleanNumericChecked(row.PercentOut, true)
		if capped {
			logger.L.Warn("Capping % Out for holder", "holder", name, "raw", row.PercentOut)
		}
		latestChange := ownership.CleanInt(row.LatestChg)

		if idx, seen := byName[name]; seen {
			h := &holders[idx]
			h.TotalPosition += position
			if percentOut > h.TotalPercentOut {
				h.TotalPercentOut = percentOut
			}
			h.LatestChange += latestChange
			continue
		}

		holder := models.Holder{
			HolderName:      name,
			Ticker:          p.ticker,
			TotalPosition:   position,
			TotalPercentOut: percentOut,
			LatestChange:    latestChange,
			InstitutionType: NormalizeText(row.InstitutionType),
			Country:         NormalizeText(row.Country),
			MetroArea:       NormalizeText(row.MetroArea),
			InsiderStatus:   NormalizeText(row.InsiderStatus),
			TreeLevel:       row.TreeLevel,
		}
		if date, ok := ownership.ParseFilingDate(row.FilingDate); ok {
			holder.FilingDate = &date
		}

		byName[name] = len(holders)
		holders = append(holders, holder)
	}
	return holders
}
