package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const endToEndExport = `Ownership Map Report
Generated for testing
Holder Name;Unnamed: 2;Portfolio Name;Position;Latest Chg;% Out;% Portfolio;Filing Date;Source;Insider Status;Institution Type;Metro Area;Country;Tree Level
Acme Capital;;;1,000;50;12,5;;15.03.2024;13F;No;Investment Advisor;New York;United States;0
;;;;;;;;;;;;;
Acme Capital;;Acme Fund I;400;10;150%;;15.03.2024;ULT-AGG;No;;;;2
`

func newTestService() *TransformService {
	return NewTransformService("WBD", "Warner Bros Discovery Inc", 2, ';')
}

func TestTransformEndToEnd(t *testing.T) {
	result, err := newTestService().Transform(strings.NewReader(endToEndExport), "Ownership_Map.csv")
	require.NoError(t, err)

	dataset := result.Dataset
	require.Len(t, dataset.Holders, 1)
	require.Len(t, dataset.Portfolios, 1)

	holder := dataset.Holders[0]
	assert.Equal(t, "Acme Capital", holder.HolderName)
	assert.Equal(t, int64(1000), holder.TotalPosition)
	assert.Equal(t, 12.5, holder.TotalPercentOut)

	portfolio := dataset.Portfolios[0]
	assert.Equal(t, "Acme Fund I", portfolio.PortfolioName)
	assert.Equal(t, "Acme Capital", portfolio.HolderName)
	assert.Equal(t, 100.0, portfolio.PercentOut) // capped from 150%
	assert.Nil(t, portfolio.PercentPortfolio)

	assert.Equal(t, 1, dataset.Summary.TotalHolders)
	assert.Equal(t, 1, dataset.Summary.TotalPortfolios)
	assert.Equal(t, int64(1000), dataset.Summary.TotalShares)
	assert.Equal(t, 12.5, dataset.Summary.TotalPercentOut)

	assert.Equal(t, 0, result.UnresolvedPortfolios)
	assert.Equal(t, 1, result.DroppedRows) // the blank separator line
}

func TestTransformCountsUnresolvedPortfolios(t *testing.T) {
	export := strings.Join([]string{
		"meta", "meta",
		"Holder Name;Portfolio Name;Tree Level",
		"Acme Capital;;0",
		"Orphan Partners;Orphan Fund;2",
	}, "\n")

	result, err := newTestService().Transform(strings.NewReader(export), "export.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnresolvedPortfolios)
	assert.Empty(t, result.Dataset.Portfolios)
}

func TestTransformFileMissingSourceIsFatal(t *testing.T) {
	_, err := newTestService().TransformFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestWriteAndLoadDatasetRoundTrip(t *testing.T) {
	result, err := newTestService().Transform(strings.NewReader(endToEndExport), "Ownership_Map.csv")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ownership_transformed.json")
	require.NoError(t, WriteDataset(result.Dataset, path))

	loaded, err := LoadDataset(path)
	require.NoError(t, err)

	assert.Equal(t, result.Dataset.Holders, loaded.Holders)
	assert.Equal(t, result.Dataset.Portfolios, loaded.Portfolios)
	assert.Equal(t, result.Dataset.Summary, loaded.Summary)
	assert.Equal(t, result.Dataset.RunID, loaded.RunID)
}

func TestWriteDatasetIsIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteDataset(models.Dataset{Ticker: "WBD"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), "\n  \"ticker\": \"WBD\"")
}
