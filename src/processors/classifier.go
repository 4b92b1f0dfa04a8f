package processors

import (
	"strings"

	"github.com/username/ownershipmap/src/parsers/ownership"
)

// RowKind tags what a source row represents in the implicit tree.
type RowKind int

const (
	RowKindDiscard RowKind = iota
	RowKindHolder
	RowKindPortfolio
)

// Rows at tree level 0-1 are top-level holders; level 2 and deeper are
// portfolios nested under them. This threshold is a fixed convention of
// the export format.
const holderTreeLevelMax = 1

// isPlaceholder reports whether a cell carries no usable value. The export
// uses several markers interchangeably.
func isPlaceholder(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--", "nan", "N/A":
		return true
	}
	return false
}

// NormalizeText trims a free-text attribute cell and converts placeholder
// markers to nil.
func NormalizeText(s string) *string {
	trimmed := strings.TrimSpace(s)
	if isPlaceholder(trimmed) {
		return nil
	}
	return &trimmed
}

// ResolveHolderName returns the effective holder name for a row. When the
// primary holder-name cell is a placeholder the export spills the real name
// into an unnamed neighbor column; if that is also a placeholder the row
// has no usable holder name.
func ResolveHolderName(row ownership.RawRow) (string, bool) {
	name := strings.TrimSpace(row.HolderName)
	if !isPlaceholder(name) {
		return name, true
	}
	alt := strings.TrimSpace(row.FallbackName)
	if !isPlaceholder(alt) {
		return alt, true
	}
	return "", false
}

// isSeparatorArtifact reports whether a line is a visual divider from the
// export (a first cell made up entirely of delimiter punctuation).
func isSeparatorArtifact(firstCell string) bool {
	if firstCell == "" {
		return false
	}
	for _, r := range firstCell {
		if r != ';' {
			return false
		}
	}
	return true
}

// ClassifyRow is the single decision point for what a row represents.
// Future changes to the depth convention or placeholder rules belong here.
func ClassifyRow(row ownership.RawRow) RowKind {
	if row.Blank || isSeparatorArtifact(row.FirstCell) {
		return RowKindDiscard
	}
	if _, ok := ResolveHolderName(row); !ok {
		return RowKindDiscard
	}
	if row.TreeLevel <= holderTreeLevelMax {
		return RowKindHolder
	}
	return RowKindPortfolio
}

// Classify partitions raw rows into holder rows and portfolio rows,
// dropping blanks, separator artifacts and rows without a resolvable
// holder name. The returned count is the number of dropped rows.
func Classify(rows []ownership.RawRow) (holderRows, portfolioRows []ownership.RawRow, dropped int) {
	for _, row := range rows {
		switch ClassifyRow(row) {
		case RowKindHolder:
			holderRows = append(holderRows, row)
		case RowKindPortfolio:
			portfolioRows = append(portfolioRows, row)
		default:
			dropped++
		}
	}
	return holderRows, portfolioRows, dropped
}
