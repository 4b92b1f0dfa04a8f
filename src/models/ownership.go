package models

import "time"

// Holder is an aggregated top-level ownership entity for a single ticker.
// The natural key is (HolderName, Ticker); duplicate source rows for the
// same name are collapsed into one Holder by the aggregation rules in
// processors.HolderProcessor.
type Holder struct {
	HolderName      string  `json:"holder_name"`
	Ticker          string  `json:"ticker"`
	TotalPosition   int64   `json:"total_position"`
	TotalPercentOut float64 `json:"total_percent_out"`
	LatestChange    int64   `json:"latest_change"`

	InstitutionType *string `json:"institution_type"`
	Country         *string `json:"country"`
	MetroArea       *string `json:"metro_area"`
	InsiderStatus   *string `json:"insider_status"`

	TreeLevel  int     `json:"tree_level"`
	FilingDate *string `json:"filing_date"` // YYYY-MM-DD
}

// Portfolio is a sub-position nested beneath exactly one Holder.
// HolderName is carried as the natural key so the upsert transport can
// re-resolve the owning holder; in-memory indices from assembly are never
// durable identifiers.
type Portfolio struct {
	HolderName    string `json:"holder_name"`
	Ticker        string `json:"ticker"`
	PortfolioName string `json:"portfolio_name"`

	Position   int64   `json:"position"`
	PercentOut float64 `json:"percent_out"`
	// PercentPortfolio is nil when the source field was absent; an explicit
	// zero is a different value.
	PercentPortfolio *float64 `json:"percent_portfolio"`
	LatestChange     int64    `json:"latest_change"`

	FilingDate *string `json:"filing_date"` // YYYY-MM-DD
	Source     *string `json:"source"`
	TreeLevel  int     `json:"tree_level"`
}

// Summary carries dataset-level totals. TotalPercentOut is a plain sum
// across holders and may legitimately exceed 100; it is not clamped.
type Summary struct {
	TotalHolders    int     `json:"total_holders"`
	TotalPortfolios int     `json:"total_portfolios"`
	TotalShares     int64   `json:"total_shares"`
	TotalPercentOut float64 `json:"total_percent_out"`
}

// Dataset is the assembled, immutable output of the transformation
// pipeline and the unit handed to the upsert transport.
type Dataset struct {
	RunID         string      `json:"run_id"`
	Ticker        string      `json:"ticker"`
	CompanyName   string      `json:"company_name"`
	TransformedAt time.Time   `json:"transformed_at"`
	Holders       []Holder    `json:"holders"`
	Portfolios    []Portfolio `json:"portfolios"`
	Summary       Summary     `json:"summary"`
}
