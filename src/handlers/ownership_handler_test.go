package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/ownershipmap/src/config"
	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{MaxUploadSizeBytes: 10 * 1024 * 1024}
	os.Exit(m.Run())
}

const handlerExport = `Ownership Map Report
Generated for testing
Holder Name;Portfolio Name;Position;% Out;Tree Level
Acme Capital;;1,000;12,5;0
Acme Capital;Acme Fund I;400;2,1;2
`

func newHandler() *OwnershipHandler {
	transformService := services.NewTransformService("WBD", "Warner Bros Discovery Inc", 2, ';')
	resultCache := cache.New(time.Minute, time.Minute)
	return NewOwnershipHandler(transformService, nil, resultCache)
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ownership/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	h := newHandler()
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, multipartUpload(t, "Ownership_Map.csv", handlerExport, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response["run_id"])

	summary := response["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["total_holders"])
	assert.Equal(t, float64(1), summary["total_portfolios"])
	assert.Equal(t, float64(1000), summary["total_shares"])
}

func TestHandleUploadRejectsUnknownExtension(t *testing.T) {
	h := newHandler()
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, multipartUpload(t, "holdings.pdf", "x", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadMigrateWithoutStore(t *testing.T) {
	h := newHandler()
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, multipartUpload(t, "Ownership_Map.csv", handlerExport, map[string]string{"migrate": "true"}))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleGetSummary(t *testing.T) {
	h := newHandler()

	// Nothing cached yet.
	rec := httptest.NewRecorder()
	h.HandleGetSummary(rec, httptest.NewRequest(http.MethodGet, "/api/ownership/summary", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Run an upload, then the summary is served from cache.
	rec = httptest.NewRecorder()
	h.HandleUpload(rec, multipartUpload(t, "Ownership_Map.csv", handlerExport, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleGetSummary(rec, httptest.NewRequest(http.MethodGet, "/api/ownership/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "WBD", response["ticker"])
}
