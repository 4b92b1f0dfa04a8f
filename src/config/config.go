package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port        string
	DatabaseURL string
	LogLevel    string

	// Instrument identity stamped onto every dataset
	Ticker      string
	CompanyName string

	// Source file settings
	SourcePath     string
	OutputPath     string
	SkipRows       int
	SourceDelim    rune
	MigrationsPath string

	// Upload limits (serve mode)
	MaxUploadSizeBytes int64

	// How many per-record transport warnings to print before suppressing
	WarnLimit int

	// Cron expression for schedule mode
	PipelineSchedule string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from a subdir)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	delimStr := getEnv("SOURCE_DELIMITER", ";")
	delim := ';'
	if delimStr != "" {
		delim = rune(delimStr[0])
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760") // 10MB default
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		// Core
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Instrument
		Ticker:      getEnv("TICKER", "WBD"),
		CompanyName: getEnv("COMPANY_NAME", "Warner Bros Discovery Inc"),

		// Source
		SourcePath:     getEnv("OWNERSHIP_SOURCE_PATH", "data/Ownership_Map.csv"),
		OutputPath:     getEnv("OUTPUT_JSON_PATH", "data/ownership_transformed.json"),
		SkipRows:       getEnvAsInt("SOURCE_SKIP_ROWS", 12),
		SourceDelim:    delim,
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),

		// Limits
		MaxUploadSizeBytes: maxUploadSizeBytes,
		WarnLimit:          getEnvAsInt("TRANSPORT_WARN_LIMIT", 10),

		// Scheduling
		PipelineSchedule: getEnv("PIPELINE_SCHEDULE", "0 6 * * *"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, Ticker=%s, SourcePath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.Ticker, Cfg.SourcePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}
