package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"noisereports/internal/table"
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteTable(t *testing.T) {
	data, err := EncodeTable("Weekly averages", sampleTable(t))
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"Weekly averages"}, f.GetSheetList())

	rows, err := f.GetRows("Weekly averages")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Period", "laeq"}, rows[0])
	assert.Equal(t, []string{"Day", "55.2"}, rows[1])
	assert.Equal(t, []string{"Night, late"}, rows[2], "missing values are empty cells")
}

func TestWriteWorkbookKeepsSheetOrder(t *testing.T) {
	names := []string{"Measurement points", "Measurement averages", "Weekly averages", "Daily averages", "Hourly averages"}
	sheets := make([]NamedTable, len(names))
	for i, n := range names {
		sheets[i] = NamedTable{Name: n, Table: table.New("ID")}
	}

	data, err := EncodeWorkbook(sheets)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, names, f.GetSheetList())

	rows, err := f.GetRows("Hourly averages")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID"}}, rows, "empty tables keep their header row")
}

func TestWriteWorkbookErrors(t *testing.T) {
	_, err := EncodeWorkbook(nil)
	assert.Error(t, err)

	_, err = EncodeWorkbook([]NamedTable{
		{Name: "Metadata", Table: table.New("ID")},
		{Name: "metadata", Table: table.New("ID")},
	})
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Weekly averages", "Weekly averages"},
		{"a/b:c", "a_b_c"},
		{"", "Sheet1"},
		{"Parameters hourly for the north measurement point", "Parameters hourly for the north"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SheetName(tt.in))
		})
	}
}
