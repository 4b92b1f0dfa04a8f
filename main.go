package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/username/ownershipmap/src/config"
	"github.com/username/ownershipmap/src/database"
	"github.com/username/ownershipmap/src/handlers"
	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/services"
)

const (
	defaultCacheExpiration = 15 * time.Minute
	cacheCleanupInterval   = 30 * time.Minute
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ownershipmap <mode>

Modes:
  transform   read the ownership export and write the transformed dataset JSON
  migrate     load the transformed dataset JSON and upsert it into the store
  run         transform then migrate in one pass
  serve       start the HTTP API (upload + summary endpoints)
  schedule    run the full pipeline on the configured cron schedule
`)
	os.Exit(2)
}

func newTransformService() *services.TransformService {
	return services.NewTransformService(
		config.Cfg.Ticker,
		config.Cfg.CompanyName,
		config.Cfg.SkipRows,
		config.Cfg.SourceDelim,
	)
}

// runTransform executes the pipeline over the configured source file and
// writes the dataset JSON next to it.
func runTransform() (*services.TransformResult, error) {
	result, err := newTransformService().TransformFile(config.Cfg.SourcePath)
	if err != nil {
		return nil, err
	}
	if err := services.WriteDataset(result.Dataset, config.Cfg.OutputPath); err != nil {
		return nil, err
	}
	return result, nil
}

// runMigrate connects to the store, applies migrations and upserts the
// given dataset. The pool is initialized lazily so transform-only runs
// never require a database.
func runMigrate(ctx context.Context, load func() (*services.TransformResult, error)) error {
	database.InitDB(config.Cfg.DatabaseURL)
	defer database.Pool.Close()
	database.RunMigrations(config.Cfg.DatabaseURL, config.Cfg.MigrationsPath)

	result, err := load()
	if err != nil {
		return err
	}

	migrationService := services.NewMigrationService(database.Pool, config.Cfg.WarnLimit)
	_, err = migrationService.Migrate(ctx, result.Dataset)
	return err
}

func runServe() {
	transformService := newTransformService()
	resultCache := cache.New(defaultCacheExpiration, cacheCleanupInterval)

	var migrationService *services.MigrationService
	if config.Cfg.DatabaseURL != "" {
		database.InitDB(config.Cfg.DatabaseURL)
		database.RunMigrations(config.Cfg.DatabaseURL, config.Cfg.MigrationsPath)
		migrationService = services.NewMigrationService(database.Pool, config.Cfg.WarnLimit)
	} else {
		logger.L.Warn("DATABASE_URL not set; serve mode will transform uploads but cannot persist them")
	}

	ownershipHandler := handlers.NewOwnershipHandler(transformService, migrationService, resultCache)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(rateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/ownership/upload", ownershipHandler.HandleUpload)
		r.Get("/ownership/summary", ownershipHandler.HandleGetSummary)
	})

	addr := ":" + config.Cfg.Port
	logger.L.Info("HTTP server listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		stdlog.Fatalf("server failed: %v", err)
	}
}

func runSchedule() {
	c := cron.New()
	_, err := c.AddFunc(config.Cfg.PipelineSchedule, func() {
		logger.L.Info("Scheduled pipeline run starting", "schedule", config.Cfg.PipelineSchedule)
		if err := runMigrate(context.Background(), runTransform); err != nil {
			logger.L.Error("Scheduled pipeline run failed", "error", err)
		}
	})
	if err != nil {
		stdlog.Fatalf("invalid PIPELINE_SCHEDULE %q: %v", config.Cfg.PipelineSchedule, err)
	}
	logger.L.Info("Pipeline scheduler started", "schedule", config.Cfg.PipelineSchedule)
	c.Run()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	mode := flag.Arg(0)
	if mode == "" {
		mode = "run"
	}

	switch mode {
	case "transform":
		if _, err := runTransform(); err != nil {
			stdlog.Fatalf("transform failed: %v", err)
		}
	case "migrate":
		err := runMigrate(context.Background(), func() (*services.TransformResult, error) {
			dataset, err := services.LoadDataset(config.Cfg.OutputPath)
			if err != nil {
				return nil, err
			}
			return &services.TransformResult{Dataset: dataset}, nil
		})
		if err != nil {
			stdlog.Fatalf("migrate failed: %v", err)
		}
	case "run":
		if err := runMigrate(context.Background(), runTransform); err != nil {
			stdlog.Fatalf("pipeline failed: %v", err)
		}
	case "serve":
		runServe()
	case "schedule":
		runSchedule()
	default:
		usage()
	}
}
