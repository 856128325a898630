package spreadsheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"brandsync/internal/services/normalize"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "brands.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	t.Run("Should key rows by the header row of the first sheet", func(t *testing.T) {
		path := writeWorkbook(t, [][]interface{}{
			{"brand_name", "order_id", "order_code"},
			{"Acme", "1", "A1"},
			{"Beta", "2", "B2"},
		})

		sheet, err := Read(path, zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "Sheet1", sheet.Name)
		assert.Equal(t, []string{"brand_name", "order_id", "order_code"}, sheet.Headers)
		assert.Equal(t, []normalize.RawRow{
			{"brand_name": "Acme", "order_id": "1", "order_code": "A1"},
			{"brand_name": "Beta", "order_id": "2", "order_code": "B2"},
		}, sheet.Rows)
	})

	t.Run("Should leave out empty cells and blank rows", func(t *testing.T) {
		path := writeWorkbook(t, [][]interface{}{
			{"brand_name", "order_id", "order_code"},
			{"Acme", "", "A1"},
			{"", "", ""},
			{"Gamma"},
		})

		sheet, err := Read(path, zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, []normalize.RawRow{
			{"brand_name": "Acme", "order_code": "A1"},
			{"brand_name": "Gamma"},
		}, sheet.Rows)
	})

	t.Run("Should read date cells in a form the normalizer rewrites", func(t *testing.T) {
		path := writeWorkbook(t, [][]interface{}{
			{"brand_name", "audit_date"},
			{"Acme", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		})

		sheet, err := Read(path, zerolog.Nop())
		require.NoError(t, err)

		require.Len(t, sheet.Rows, 1)
		raw := sheet.Rows[0]["audit_date"]
		require.NotEmpty(t, raw)
		assert.Equal(t, "2024-01-15T00:00:00.000Z", normalize.Value(raw))
	})

	t.Run("Should report a missing sheet", func(t *testing.T) {
		path := writeWorkbook(t, [][]interface{}{{"brand_name"}})

		_, err := ReadWorkbook(path, "Missing", zerolog.Nop())

		assert.Error(t, err)
	})

	t.Run("Should report an unreadable file", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "missing.xlsx"), zerolog.Nop())

		assert.Error(t, err)
	})
}

func TestReadCSV(t *testing.T) {
	t.Run("Should parse quoted fields", func(t *testing.T) {
		input := "brand_name,order_id,order_code,notes\n" +
			"\"Acme, Inc\",1,A1,\"said \"\"hi\"\"\"\n"

		sheet, err := ReadCSV(strings.NewReader(input), zerolog.Nop())
		require.NoError(t, err)

		require.Len(t, sheet.Rows, 1)
		assert.Equal(t, "Acme, Inc", sheet.Rows[0]["brand_name"])
		assert.Equal(t, `said "hi"`, sheet.Rows[0]["notes"])
	})

	t.Run("Should skip rows with a mismatched column count", func(t *testing.T) {
		input := "brand_name,order_id,order_code\n" +
			"Acme,1,A1\n" +
			"Broken,2\n" +
			"Beta,2,B2,extra\n" +
			"Gamma,3,C3\n"

		sheet, err := ReadCSV(strings.NewReader(input), zerolog.Nop())
		require.NoError(t, err)

		require.Len(t, sheet.Rows, 2)
		assert.Equal(t, "Acme", sheet.Rows[0]["brand_name"])
		assert.Equal(t, "Gamma", sheet.Rows[1]["brand_name"])
		assert.Equal(t, []int{3, 4}, sheet.Skipped)
	})

	t.Run("Should suffix repeated headers and strip a byte order mark", func(t *testing.T) {
		input := "\ufeffbrand_name,notes,notes\nAcme,first,second\n"

		sheet, err := ReadCSV(strings.NewReader(input), zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, []string{"brand_name", "notes", "notes_1"}, sheet.Headers)
		assert.Equal(t, normalize.RawRow{"brand_name": "Acme", "notes": "first", "notes_1": "second"}, sheet.Rows[0])
	})

	t.Run("Should return no rows for an empty file", func(t *testing.T) {
		sheet, err := ReadCSV(strings.NewReader(""), zerolog.Nop())
		require.NoError(t, err)

		assert.Empty(t, sheet.Rows)
	})
}

func TestRead(t *testing.T) {
	t.Run("Should pick the csv reader by extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "brands.CSV")
		require.NoError(t, os.WriteFile(path, []byte("brand_name,order_id\nAcme,1\n"), 0o600))

		sheet, err := Read(path, zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "brands.CSV", sheet.Name)
		assert.Len(t, sheet.Rows, 1)
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		_, err := Read("brands.ods", zerolog.Nop())

		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
