package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/username/ownershipmap/src/config"
	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/services"
)

const ckLatestResult = "latest_transform_result"

// OwnershipHandler exposes the transformation pipeline over HTTP: an
// upload endpoint that runs the pipeline on a posted export and a summary
// endpoint serving the latest run's result from cache.
type OwnershipHandler struct {
	transformService *services.TransformService
	migrationService *services.MigrationService // nil when no store is configured
	resultCache      *cache.Cache
}

func NewOwnershipHandler(transformService *services.TransformService, migrationService *services.MigrationService, resultCache *cache.Cache) *OwnershipHandler {
	return &OwnershipHandler{
		transformService: transformService,
		migrationService: migrationService,
		resultCache:      resultCache,
	}
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// HandleUpload accepts a multipart ownership export, runs the pipeline and
// optionally persists the result when the "migrate" form field is "true".
func (h *OwnershipHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		sendJSONError(w, fmt.Sprintf("failed to parse form or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		sendJSONError(w, "failed to retrieve file from request; use the 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		sendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".csv" && ext != ".xlsx" {
		sendJSONError(w, "unsupported file type; expected .csv or .xlsx", http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing uploaded export", "filename", fileHeader.Filename, "size", fileHeader.Size)

	result, err := h.transformService.Transform(file, fileHeader.Filename)
	if err != nil {
		logger.L.Error("Transformation failed", "filename", fileHeader.Filename, "error", err)
		sendJSONError(w, "failed to process export: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	response := map[string]any{
		"run_id":                result.Dataset.RunID,
		"summary":               result.Dataset.Summary,
		"dropped_rows":          result.DroppedRows,
		"unresolved_portfolios": result.UnresolvedPortfolios,
	}

	if r.FormValue("migrate") == "true" {
		if h.migrationService == nil {
			sendJSONError(w, "migration requested but no store is configured", http.StatusConflict)
			return
		}
		ctx := logger.ToContext(r.Context(), logger.L.With("runID", result.Dataset.RunID))
		migration, err := h.migrationService.Migrate(ctx, result.Dataset)
		if err != nil {
			logger.L.Error("Migration failed", "runID", result.Dataset.RunID, "error", err)
			sendJSONError(w, "failed to persist dataset: "+err.Error(), http.StatusBadGateway)
			return
		}
		response["migration"] = migration
	}

	h.resultCache.Set(ckLatestResult, result, cache.DefaultExpiration)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.L.Error("Error encoding JSON response for upload result", "error", err)
	}
}

// HandleGetSummary returns the latest pipeline run from the result cache.
func (h *OwnershipHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	cached, found := h.resultCache.Get(ckLatestResult)
	if !found {
		sendJSONError(w, "no transformation has run yet", http.StatusNotFound)
		return
	}
	result := cached.(*services.TransformResult)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"run_id":                result.Dataset.RunID,
		"ticker":                result.Dataset.Ticker,
		"company_name":          result.Dataset.CompanyName,
		"transformed_at":        result.Dataset.TransformedAt,
		"summary":               result.Dataset.Summary,
		"dropped_rows":          result.DroppedRows,
		"unresolved_portfolios": result.UnresolvedPortfolios,
	}); err != nil {
		logger.L.Error("Error encoding JSON response for summary", "error", err)
	}
}
