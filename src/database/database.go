package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/username/ownershipmap/src/logger"
)

var Pool *pgxpool.Pool

// InitDB opens the Postgres connection pool. The DSN comes from
// DATABASE_URL; a missing or unreachable database is fatal, since every
// mode that calls this needs the store.
func InitDB(databaseURL string) {
	if databaseURL == "" {
		stdlog.Fatal("DATABASE_URL is not set; cannot connect to the store")
	}

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		stdlog.Fatalf("failed to create connection pool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		stdlog.Fatalf("failed to ping database: %v", err)
	}
	Pool = pool
	logger.L.Info("Database connection pool established")
}

// RunMigrations applies the SQL migrations under migrationsPath against
// the same database the pool points at, via the pgx stdlib driver.
func RunMigrations(databaseURL, migrationsPath string) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		stdlog.Fatalf("failed to open migration connection: %v", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		logger.L.Error("Could not create pgx migration driver", "error", err)
		stdlog.Fatalf("could not create pgx migration driver: %v", err)
	}

	sourceURL := migrationsPath
	if !filepath.IsAbs(sourceURL) {
		cwd, err := os.Getwd()
		if err != nil {
			stdlog.Fatalf("failed to get current working directory: %v", err)
		}
		sourceURL = filepath.Join(cwd, migrationsPath)
	}
	sourceURL = fmt.Sprintf("file://%s", filepath.ToSlash(sourceURL))

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "pgx", driver)
	if err != nil {
		logger.L.Error("Migration instance creation failed", "source", sourceURL, "error", err)
		stdlog.Fatalf("migration instance creation failed: %v", err)
	}

	logger.L.Info("Applying database migrations...", "source", sourceURL)
	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.L.Info("No new database migrations to apply.")
		} else {
			logger.L.Error("Failed to apply migrations", "error", err)
			stdlog.Fatalf("failed to apply migrations: %v", err)
		}
	} else {
		logger.L.Info("Database migrations applied successfully.")
	}
}
