package ownership

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow holds the direct string values from a single data line of an
// ownership export. All fields except TreeLevel are kept verbatim; parsing
// into numbers happens downstream in the processors.
type RawRow struct {
	HolderName       string
	FallbackName     string // the export's unnamed spill-over column
	PortfolioName    string
	Position         string
	LatestChg        string
	PercentOut       string
	PercentPortfolio string
	FilingDate       string
	Source           string
	InsiderStatus    string
	InstitutionType  string
	MetroArea        string
	Country          string
	TreeLevel        int

	// FirstCell and Blank describe the physical line so the classifier can
	// drop separator artifacts and empty rows.
	FirstCell string
	Blank     bool
}

// Header names as they appear in the export, compared after trimming and
// case folding.
const (
	colHolderName       = "holder name"
	colFallbackName     = "unnamed: 2"
	colPortfolioName    = "portfolio name"
	colPosition         = "position"
	colLatestChg        = "latest chg"
	colPercentOut       = "% out"
	colPercentPortfolio = "% portfolio"
	colFilingDate       = "filing date"
	colSource           = "source"
	colInsiderStatus    = "insider status"
	colInstitutionType  = "institution type"
	colMetroArea        = "metro area"
	colCountry          = "country"
	colTreeLevel        = "tree level"
)

// Parser reads ownership-map exports. The files carry a fixed number of
// metadata lines before the header row and are delimited by semicolons;
// spreadsheet (.xlsx) exports of the same report are flattened to the same
// record shape before header mapping.
type Parser struct {
	skipRows int
	delim    rune
}

// NewParser creates a parser for exports with the given metadata-line count
// and delimiter.
func NewParser(skipRows int, delim rune) *Parser {
	return &Parser{skipRows: skipRows, delim: delim}
}

// Parse reads an export and converts its data lines into RawRows,
// dispatching on the filename extension (.csv or .xlsx).
func (p *Parser) Parse(file io.Reader, filename string) ([]RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return p.ParseXLSX(file)
	case ".csv", "":
		return p.ParseCSV(file)
	default:
		return nil, fmt.Errorf("ownership parser: unsupported file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a semicolon-delimited export. The metadata-line skip
// counts physical lines, so the prefix is stripped before CSV parsing
// (the CSV reader would silently drop blank metadata lines and misalign
// the count).
func (p *Parser) ParseCSV(file io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("ownership parser: failed to read source: %w", err)
	}

	content := strings.TrimPrefix(string(data), "\uFEFF")
	lines := strings.Split(content, "\n")
	if len(lines) <= p.skipRows {
		return nil, fmt.Errorf("ownership parser: file has %d lines, expected header after %d metadata lines", len(lines), p.skipRows)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[p.skipRows:], "\n")))
	reader.Comma = p.delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ownership parser: failed to read CSV records: %w", err)
	}
	return p.fromRecords(records)
}

// ParseXLSX reads an .xlsx export of the same report via its first sheet.
func (p *Parser) ParseXLSX(file io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("ownership parser: failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("ownership parser: failed to read xlsx rows: %w", err)
	}
	if len(rows) <= p.skipRows {
		return nil, fmt.Errorf("ownership parser: sheet has %d rows, expected header after %d metadata rows", len(rows), p.skipRows)
	}
	return p.fromRecords(rows[p.skipRows:])
}

// fromRecords maps the header (first record) by name and builds RawRows
// from the remaining records. A missing header or required column is a
// fatal source-read failure.
func (p *Parser) fromRecords(records [][]string) ([]RawRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("ownership parser: no header row found")
	}

	header := records[0]
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colHolderName, colTreeLevel} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("ownership parser: required column %q not found in header", required)
		}
	}

	cell := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var rows []RawRow
	for _, record := range records[1:] {
		blank := true
		for _, c := range record {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}

		firstCell := ""
		if len(record) > 0 {
			firstCell = strings.TrimSpace(record[0])
		}

		rows = append(rows, RawRow{
			HolderName:       cell(record, colHolderName),
			FallbackName:     cell(record, colFallbackName),
			PortfolioName:    cell(record, colPortfolioName),
			Position:         cell(record, colPosition),
			LatestChg:        cell(record, colLatestChg),
			PercentOut:       cell(record, colPercentOut),
			PercentPortfolio: cell(record, colPercentPortfolio),
			FilingDate:       cell(record, colFilingDate),
			Source:           cell(record, colSource),
			InsiderStatus:    cell(record, colInsiderStatus),
			InstitutionType:  cell(record, colInstitutionType),
			MetroArea:        cell(record, colMetroArea),
			Country:          cell(record, colCountry),
			TreeLevel:        int(CleanNumeric(cell(record, colTreeLevel), false)),
			FirstCell:        firstCell,
			Blank:            blank,
		})
	}
	return rows, nil
}
