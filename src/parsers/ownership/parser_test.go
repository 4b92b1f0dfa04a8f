package ownership

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testExport = `Ownership Map Report
Generated for testing
Holder Name;Unnamed: 2;Portfolio Name;Position;Latest Chg;% Out;% Portfolio;Filing Date;Source;Insider Status;Institution Type;Metro Area;Country;Tree Level
Acme Capital;;;1,000;50;12,5;;15.03.2024;13F;No;Investment Advisor;New York;United States;0
-;Spilled Holdings LLC;;2.500;0;3,2;;15.03.2024;13F;No;Hedge Fund;Boston;United States;1
Acme Capital;;Acme Fund I;400;10;150%;25,0;15.03.2024;ULT-AGG;No;;;;2
`

func newTestParser() *Parser {
	return NewParser(2, ';')
}

func TestParseCSV(t *testing.T) {
	rows, err := newTestParser().ParseCSV(strings.NewReader(testExport))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Acme Capital", rows[0].HolderName)
	assert.Equal(t, "1,000", rows[0].Position)
	assert.Equal(t, "12,5", rows[0].PercentOut)
	assert.Equal(t, 0, rows[0].TreeLevel)
	assert.False(t, rows[0].Blank)

	assert.Equal(t, "-", rows[1].HolderName)
	assert.Equal(t, "Spilled Holdings LLC", rows[1].FallbackName)
	assert.Equal(t, 1, rows[1].TreeLevel)

	assert.Equal(t, "Acme Fund I", rows[2].PortfolioName)
	assert.Equal(t, "150%", rows[2].PercentOut)
	assert.Equal(t, "25,0", rows[2].PercentPortfolio)
	assert.Equal(t, 2, rows[2].TreeLevel)
}

func TestParseCSVHeaderIsCaseInsensitive(t *testing.T) {
	export := "meta\nmeta\nHOLDER NAME ; tree level \nBig Fund;0\n"
	rows, err := newTestParser().ParseCSV(strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Big Fund", rows[0].HolderName)
	assert.Equal(t, 0, rows[0].TreeLevel)
}

func TestParseCSVMissingRequiredColumn(t *testing.T) {
	export := "meta\nmeta\nPortfolio Name;Position\nFund;100\n"
	_, err := newTestParser().ParseCSV(strings.NewReader(export))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column")
}

func TestParseCSVTooFewLines(t *testing.T) {
	_, err := newTestParser().ParseCSV(strings.NewReader("just one line"))
	require.Error(t, err)
}

func TestParseCSVStripsBOM(t *testing.T) {
	export := "\uFEFFHolder Name;Tree Level\nAcme;0\n"
	rows, err := NewParser(0, ';').ParseCSV(strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].HolderName)
}

func TestParseCSVShortRecordYieldsEmptyCells(t *testing.T) {
	// Data lines narrower than the header must not panic; missing cells
	// read as empty.
	export := "Holder Name;Portfolio Name;Tree Level\nAcme\n"
	rows, err := NewParser(0, ';').ParseCSV(strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].HolderName)
	assert.Equal(t, "", rows[0].PortfolioName)
	assert.Equal(t, 0, rows[0].TreeLevel)
}

func TestParseDispatchRejectsUnknownExtension(t *testing.T) {
	_, err := newTestParser().Parse(strings.NewReader(""), "holdings.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

// buildTestWorkbook writes the semicolon export into an in-memory .xlsx
// workbook, one sheet cell per field.
func buildTestWorkbook(t *testing.T, export string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, line := range strings.Split(strings.TrimRight(export, "\n"), "\n") {
		for j, cellValue := range strings.Split(line, ";") {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, cellValue))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParseXLSXMatchesCSV(t *testing.T) {
	fromCSV, err := newTestParser().ParseCSV(strings.NewReader(testExport))
	require.NoError(t, err)

	fromXLSX, err := newTestParser().ParseXLSX(buildTestWorkbook(t, testExport))
	require.NoError(t, err)

	require.Len(t, fromXLSX, len(fromCSV))
	assert.Equal(t, "Acme Capital", fromXLSX[0].HolderName)
	assert.Equal(t, "1,000", fromXLSX[0].Position)
	assert.Equal(t, 0, fromXLSX[0].TreeLevel)
	assert.Equal(t, "Spilled Holdings LLC", fromXLSX[1].FallbackName)
	assert.Equal(t, "Acme Fund I", fromXLSX[2].PortfolioName)
	assert.Equal(t, "150%", fromXLSX[2].PercentOut)
	assert.Equal(t, 2, fromXLSX[2].TreeLevel)
}

func TestParseDispatchXLSXByExtension(t *testing.T) {
	rows, err := newTestParser().Parse(buildTestWorkbook(t, testExport), "Ownership_Map.xlsx")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestParseXLSXTooFewRows(t *testing.T) {
	_, err := newTestParser().ParseXLSX(buildTestWorkbook(t, "just one line\n"))
	require.Error(t, err)
}

func TestParseDispatchCSVByExtension(t *testing.T) {
	rows, err := newTestParser().Parse(strings.NewReader(testExport), "Ownership_Map.csv")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
