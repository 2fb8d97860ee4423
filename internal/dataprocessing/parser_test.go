package dataprocessing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/table"
)

// buildWorkbook writes the given sheets (header row first) into an in-memory xlsx
func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbookCellKinds(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Weekly averages": {
			{"Week_survey", "Period", "lden", "lceq_1min_moving_average"},
			{1, "Day", 55.25, nil},
			{1, "Night", 48.5, 60},
		},
	})

	set, err := ParseWorkbook(data)
	require.NoError(t, err)

	tbl, ok := set.Sheet("Weekly averages")
	require.True(t, ok)
	assert.Equal(t, []string{"Week_survey", "Period", "lden", "lceq_1min_moving_average"}, tbl.Headers())
	assert.Equal(t, 2, tbl.Rows())

	row := tbl.Row(0)
	assert.Equal(t, table.Number(1), row[0])
	assert.Equal(t, table.Text("Day"), row[1])
	assert.Equal(t, table.Number(55.25), row[2])
	assert.True(t, row[3].IsMissing())

	assert.Equal(t, table.Number(60), tbl.Row(1)[3])
}

func TestParseWorkbookDatesStayText(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Parameters daily": {
			{"Date", "laeq"},
			{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 52.1},
		},
	})

	set, err := ParseWorkbook(data)
	require.NoError(t, err)

	tbl, ok := set.Sheet("Parameters daily")
	require.True(t, ok)
	date := tbl.Row(0)[0]
	assert.Equal(t, table.KindText, date.Kind)
	assert.NotEmpty(t, date.Text)
	assert.Equal(t, table.Number(52.1), tbl.Row(0)[1])
}

func TestParseWorkbookNormalisesHeaders(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Metadata": {
			{"ID", nil, "ID"},
			{"MP1", "x", "y", "extra"},
		},
	})

	set, err := ParseWorkbook(data)
	require.NoError(t, err)

	tbl, ok := set.Sheet("Metadata")
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "Unnamed: 1", "ID.1", "Unnamed: 3"}, tbl.Headers())
	assert.Equal(t, table.Text("extra"), tbl.Row(0)[3])
}

func TestParseWorkbookHeaderOnlySheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Measurement averages": {{"Period", "lden"}},
	})

	set, err := ParseWorkbook(data)
	require.NoError(t, err)
	tbl, ok := set.Sheet("Measurement averages")
	require.True(t, ok)
	assert.True(t, tbl.IsEmpty())
	assert.Equal(t, []string{"Period", "lden"}, tbl.Headers())
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ParseWorkbook([]byte("not a workbook"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrParse))
}

func TestParseFile(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Metadata": {{"ID"}, {"MP1"}},
	})
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	set, err := ParseFile(path)
	require.NoError(t, err)
	tbl, ok := set.Sheet("Metadata")
	require.True(t, ok)
	assert.Equal(t, table.Text("MP1"), tbl.Row(0)[0])

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	var perr *apierrors.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.FileID, "missing.xlsx")
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		shown string
		want  table.Value
	}{
		{"plain number", "55.3", "55.3", table.Number(55.3)},
		{"thousands separator in display", "1000.5", "1,000.5", table.Number(1000.5)},
		{"padded", " 42 ", "42", table.Number(42)},
		{"decimal comma text", "55,3", "55,3", table.Text("55,3")},
		{"percent format", "0.55", "55%", table.Text("55%")},
		{"text", "Day", "Day", table.Text("Day")},
		{"blank", "", "", table.Missing()},
		{"excel error", "#N/A", "#N/A", table.Missing()},
		{"N/A", "N/A", "N/A", table.Missing()},
		{"lower n/a", "n/a", "n/a", table.Missing()},
		{"NA", "NA", "NA", table.Missing()},
		{"null", "null", "null", table.Missing()},
		{"None", "None", "None", table.Missing()},
		{"negative nan", "-nan", "-nan", table.Missing()},
		{"infinity is text", "Inf", "Inf", table.Text("Inf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellValue(tt.raw, tt.shown))
		})
	}
}

func TestParseWorkbookMissingTokensAverageAsMissing(t *testing.T) {
	header := []any{"Period", "lden", "laeq", "lceq_1min_moving_average"}
	src := newFakeSource()
	for id, rows := range map[string][][]any{
		"a": {header, {"Day", 1, 10, 1}, {"Night", 1, "#N/A", 1}},
		"b": {header, {"Day", 1, 20, 1}, {"Night", 1, 30, 1}},
	} {
		set, err := ParseWorkbook(buildWorkbook(t, map[string][][]any{"Measurement averages": rows}))
		require.NoError(t, err)
		src.sets[id] = set
	}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b"}, Overview, []table.Category{table.MeasurementAverages})
	require.NoError(t, err)

	assert.Equal(t, StatusAggregated, res.Status[table.MeasurementAverages])
	assert.Empty(t, res.Failures)
	assert.Equal(t, []float64{15, 30}, columnNums(t, res.Table(table.MeasurementAverages), "laeq"))
}
