// Package spreadsheet reads the input workbook into rows keyed by header name.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"brandsync/internal/services/normalize"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Sheet is the parsed content of one worksheet
type Sheet struct {
	Name    string
	Headers []string
	Rows    []normalize.RawRow
	Skipped []int // 1-based line numbers of rows that were dropped
}

// Read parses the first worksheet of an xlsx workbook or a csv file, chosen by
// extension.
func Read(path string, logger zerolog.Logger) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadWorkbook(path, "", logger)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		sheet, err := ReadCSV(f, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		sheet.Name = filepath.Base(path)
		return sheet, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadWorkbook reads sheetName from an xlsx workbook. An empty sheetName
// selects the first worksheet.
func ReadWorkbook(path, sheetName string, logger zerolog.Logger) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no sheets found in %s", path)
		}
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("reading rows of %q: %w", sheetName, err)
	}

	sheet := fromRecords(records, false)
	sheet.Name = sheetName

	logger.Info().
		Str("path", path).
		Str("sheet", sheetName).
		Int("rows", len(sheet.Rows)).
		Msg("Workbook loaded")

	return sheet, nil
}

// ReadCSV reads a header line followed by data lines. Lines whose field count
// differs from the header are skipped and reported.
func ReadCSV(r io.Reader, logger zerolog.Logger) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}

	sheet := fromRecords(records, true)
	for _, line := range sheet.Skipped {
		logger.Warn().Int("line", line).Int("columns", len(sheet.Headers)).
			Msg("Skipping csv row with mismatched column count")
	}

	logger.Info().Int("rows", len(sheet.Rows)).Int("skipped", len(sheet.Skipped)).Msg("CSV loaded")
	return sheet, nil
}

// fromRecords turns a header row plus data rows into keyed rows. Empty cells
// are left out of the row and fully blank rows are dropped. With strict set,
// cells are trimmed and rows whose length differs from the header are
// skipped; otherwise short rows are accepted as they are.
func fromRecords(records [][]string, strict bool) *Sheet {
	sheet := &Sheet{Rows: []normalize.RawRow{}}
	if len(records) == 0 {
		return sheet
	}

	sheet.Headers = headerNames(records[0])

	for i, record := range records[1:] {
		line := i + 2
		if strict && len(record) != len(records[0]) {
			sheet.Skipped = append(sheet.Skipped, line)
			continue
		}

		row := make(normalize.RawRow, len(record))
		for col, cell := range record {
			if strict {
				cell = strings.TrimSpace(cell)
			}
			if col >= len(sheet.Headers) || sheet.Headers[col] == "" || cell == "" {
				continue
			}
			row[sheet.Headers[col]] = cell
		}
		if len(row) == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet
}

// headerNames trims the header cells. Repeated names get a numeric suffix:
// the second "notes" becomes "notes_1".
func headerNames(header []string) []string {
	names := make([]string, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			continue
		}
		if n := counts[name]; n > 0 {
			counts[name]++
			name = name + "_" + strconv.Itoa(n)
		} else {
			counts[name] = 1
		}
		names[i] = name
	}
	return names
}
