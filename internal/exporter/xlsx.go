package exporter

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"noisereports/internal/table"
)

const maxSheetNameLength = 31

// NamedTable is one sheet of a multi-sheet workbook
type NamedTable struct {
	Name  string
	Table *table.Table
}

// WriteTable writes t as a single-sheet xlsx workbook
func WriteTable(w io.Writer, sheet string, t *table.Table) error {
	return WriteWorkbook(w, []NamedTable{{Name: sheet, Table: t}})
}

// WriteWorkbook writes one sheet per table, in order. Missing values are left
// as empty cells and a header row is always written, even for empty tables.
func WriteWorkbook(w io.Writer, sheets []NamedTable) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	seen := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := SheetName(s.Name)
		if seen[strings.ToLower(name)] {
			return fmt.Errorf("duplicate sheet name %q", name)
		}
		seen[strings.ToLower(name)] = true

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}

		if err := writeSheet(f, name, s.Table); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// EncodeTable returns WriteTable output as bytes
func EncodeTable(sheet string, t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, sheet, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeWorkbook returns WriteWorkbook output as bytes
func EncodeWorkbook(sheets []NamedTable) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sheets); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t *table.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := t.Headers()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r := 0; r < t.Rows(); r++ {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cellValues(t.Row(r))); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func cellValues(row []table.Value) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		switch v.Kind {
		case table.KindNumber:
			out[i] = v.Num
		case table.KindText:
			out[i] = v.Text
		default:
			out[i] = nil
		}
	}
	return out
}

// SheetName makes s usable as a worksheet name: no reserved characters and at
// most 31 characters.
func SheetName(s string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Trim(s, "'"))
	if name == "" {
		name = "Sheet1"
	}
	if runes := []rune(name); len(runes) > maxSheetNameLength {
		name = string(runes[:maxSheetNameLength])
	}
	return name
}
