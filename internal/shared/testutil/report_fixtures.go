package testutil

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"noisereports/internal/table"
)

// FixtureRows is the number of data rows written to every averaged sheet
const FixtureRows = 2

// ReportFixture parameterizes a generated measurement workbook
type ReportFixture struct {
	// PointID is written to the ID column of the Metadata sheet
	PointID string
	// Level offsets every numeric cell so contributors can be told apart
	Level float64
	// Omit lists categories whose sheet is left out of the workbook
	Omit []table.Category
}

// FixtureHeaders returns the header row used for a category's sheet.
// Averaged categories get one extra column between the range bounds.
func FixtureHeaders(c table.Category) []string {
	spec := c.Spec()
	if spec.Kind == table.Distinct {
		return []string{spec.IDColumn, "Location", "Device"}
	}
	headers := append([]string{}, spec.FixedColumns...)
	return append(headers, spec.RangeStart, "l90", spec.RangeEnd)
}

// FixtureValue is the numeric value written at row r, column offset k of the range
func FixtureValue(level float64, r, k int) float64 {
	return level + float64(10*r+k)
}

// ReportWorkbook builds an xlsx measurement report with one sheet per category
func ReportWorkbook(t testing.TB, fx ReportFixture) []byte {
	t.Helper()

	omitted := make(map[table.Category]bool, len(fx.Omit))
	for _, c := range fx.Omit {
		omitted[c] = true
	}

	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, c := range table.AllCategories() {
		if omitted[c] {
			continue
		}
		sheet := c.Spec().Sheet
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", sheet))
			first = false
		} else {
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
		}
		writeFixtureSheet(t, f, c, fx)
	}
	if first {
		require.NoError(t, f.SetSheetName("Sheet1", "Notes"))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func writeFixtureSheet(t testing.TB, f *excelize.File, c table.Category, fx ReportFixture) {
	spec := c.Spec()
	sheet := spec.Sheet
	headers := FixtureHeaders(c)

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))

	if spec.Kind == table.Distinct {
		row := []any{fx.PointID, "Site " + fx.PointID, "SLM-1"}
		require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
		return
	}

	for r := 0; r < FixtureRows; r++ {
		row := make([]any, 0, len(headers))
		for i := range spec.FixedColumns {
			row = append(row, fmt.Sprintf("r%d-c%d", r, i))
		}
		for k := 0; k < 3; k++ {
			row = append(row, FixtureValue(fx.Level, r, k))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
}
