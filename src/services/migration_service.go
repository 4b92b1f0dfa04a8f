package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/models"
	"github.com/username/ownershipmap/src/processors"
)

// DB is the subset of pgxpool.Pool the migration service needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MigrationResult reports what happened during one upsert run. Per-record
// failures are counted, never fatal.
type MigrationResult struct {
	HoldersUpserted    int  `json:"holders_upserted"`
	HolderErrors       int  `json:"holder_errors"`
	PortfoliosUpserted int  `json:"portfolios_upserted"`
	MissingHolders     int  `json:"missing_holders"`
	PortfolioErrors    int  `json:"portfolio_errors"`
	ViewRefreshed      bool `json:"view_refreshed"`
}

// MigrationService is the upsert transport: it persists an assembled
// dataset into Postgres idempotently, keyed by the natural keys
// (holder_name, ticker) for holders and (ticker, holder, portfolio_name)
// for portfolios. Holder linkage is re-resolved by name here because the
// in-memory indices used during assembly are not durable identifiers.
type MigrationService struct {
	db        DB
	warnLimit int
}

func NewMigrationService(db DB, warnLimit int) *MigrationService {
	if warnLimit <= 0 {
		warnLimit = 10
	}
	return &MigrationService{db: db, warnLimit: warnLimit}
}

const upsertHolderSQL = `
INSERT INTO ownership_holders (
	holder_name, ticker, total_position, total_percent_out, latest_change,
	institution_type, country, metro_area, insider_status, tree_level, filing_date,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (holder_name, ticker) DO UPDATE SET
	total_position    = EXCLUDED.total_position,
	total_percent_out = EXCLUDED.total_percent_out,
	latest_change     = EXCLUDED.latest_change,
	institution_type  = EXCLUDED.institution_type,
	country           = EXCLUDED.country,
	metro_area        = EXCLUDED.metro_area,
	insider_status    = EXCLUDED.insider_status,
	tree_level        = EXCLUDED.tree_level,
	filing_date       = EXCLUDED.filing_date,
	updated_at        = now()
RETURNING id`

const upsertPortfolioSQL = `
INSERT INTO ownership_portfolios (
	holder_id, ticker, portfolio_name, "position", percent_out, percent_portfolio,
	latest_change, filing_date, source, tree_level, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (holder_id, ticker, portfolio_name) DO UPDATE SET
	"position"        = EXCLUDED."position",
	percent_out       = EXCLUDED.percent_out,
	percent_portfolio = EXCLUDED.percent_portfolio,
	latest_change     = EXCLUDED.latest_change,
	filing_date       = EXCLUDED.filing_date,
	source            = EXCLUDED.source,
	tree_level        = EXCLUDED.tree_level,
	updated_at        = now()`

// capPercent re-caps a percentage at the transport boundary. The pipeline
// already clamps per-record values; this is a second, independent check.
func capPercent(v float64) (float64, bool) {
	if v > 100 {
		return 100, true
	}
	if v < 0 {
		return 0, true
	}
	return v, false
}

// Migrate upserts all holders, then all portfolios, then refreshes the
// derived summary view best-effort. Individual record failures are logged
// and counted; only the initial holder phase producing zero usable keys is
// treated as a hard failure for the portfolio phase.
func (s *MigrationService) Migrate(ctx context.Context, dataset models.Dataset) (*MigrationResult, error) {
	log := logger.FromContext(ctx)
	result := &MigrationResult{}

	holderIDs := make(map[string]int64, len(dataset.Holders)) // holder name -> db id
	names := make([]string, 0, len(dataset.Holders))

	for _, holder := range dataset.Holders {
		percentOut, capped := capPercent(holder.TotalPercentOut)
		if capped {
			log.Warn("Capping total_percent_out at transport boundary", "holder", holder.HolderName, "raw", holder.TotalPercentOut)
		}

		var id int64
		err := s.db.QueryRow(ctx, upsertHolderSQL,
			holder.HolderName, holder.Ticker, holder.TotalPosition, percentOut,
			holder.LatestChange, holder.InstitutionType, holder.Country,
			holder.MetroArea, holder.InsiderStatus, holder.TreeLevel, holder.FilingDate,
		).Scan(&id)
		if err != nil {
			result.HolderErrors++
			log.Error("Failed to upsert holder", "holder", holder.HolderName, "error", err)
			continue
		}
		holderIDs[holder.HolderName] = id
		names = append(names, holder.HolderName)
		result.HoldersUpserted++
	}

	matcher := processors.NewHolderMatcher(names)

	for _, portfolio := range dataset.Portfolios {
		pos, _ := matcher.Match(portfolio.HolderName)
		if pos < 0 {
			result.MissingHolders++
			if result.MissingHolders <= s.warnLimit {
				log.Warn("Could not find holder for portfolio", "portfolio", portfolio.PortfolioName, "holder", portfolio.HolderName)
			} else if result.MissingHolders == s.warnLimit+1 {
				log.Warn("Suppressing further missing holder warnings")
			}
			continue
		}
		holderID := holderIDs[matcher.Name(pos)]

		percentOut, capped := capPercent(portfolio.PercentOut)
		if capped {
			log.Warn("Capping percent_out at transport boundary", "portfolio", portfolio.PortfolioName, "raw", portfolio.PercentOut)
		}
		percentPortfolio := portfolio.PercentPortfolio
		if percentPortfolio != nil {
			v, capped := capPercent(*percentPortfolio)
			if capped {
				log.Warn("Capping percent_portfolio at transport boundary", "portfolio", portfolio.PortfolioName, "raw", *percentPortfolio)
			}
			percentPortfolio = &v
		}

		_, err := s.db.Exec(ctx, upsertPortfolioSQL,
			holderID, portfolio.Ticker, portfolio.PortfolioName, portfolio.Position,
			percentOut, percentPortfolio, portfolio.LatestChange,
			portfolio.FilingDate, portfolio.Source, portfolio.TreeLevel,
		)
		if err != nil {
			result.PortfolioErrors++
			if result.PortfolioErrors <= s.warnLimit {
				log.Error("Failed to upsert portfolio", "portfolio", portfolio.PortfolioName, "error", err)
			} else if result.PortfolioErrors == s.warnLimit+1 {
				log.Error("Suppressing further portfolio error messages")
			}
			continue
		}
		result.PortfoliosUpserted++
	}

	// Best-effort refresh of the derived summary; failure is not fatal.
	if _, err := s.db.Exec(ctx, "REFRESH MATERIALIZED VIEW ownership_summary"); err != nil {
		log.Warn("Could not refresh ownership_summary materialized view", "error", err)
	} else {
		result.ViewRefreshed = true
	}

	log.Info("Migration complete",
		"holdersUpserted", result.HoldersUpserted,
		"holderErrors", result.HolderErrors,
		"portfoliosUpserted", result.PortfoliosUpserted,
		"missingHolders", result.MissingHolders,
		"portfolioErrors", result.PortfolioErrors,
		"viewRefreshed", result.ViewRefreshed,
	)

	if result.HoldersUpserted == 0 && len(dataset.Holders) > 0 {
		return result, fmt.Errorf("no holders could be persisted (%d errors)", result.HolderErrors)
	}
	return result, nil
}
