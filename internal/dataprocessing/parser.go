package dataprocessing

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/table"
)

// ParseWorkbook decodes an xlsx workbook into one table per sheet.
//
// The first row of every sheet is the header row. Blank headers become
// "Unnamed: N" and repeated headers get a ".1", ".2" suffix so column names
// stay unique. A cell is numeric when both its raw and displayed value parse
// as a number; dates, booleans and other formatted cells are kept as text.
func ParseWorkbook(data []byte) (table.Set, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apierrors.NewParseError("", "", err)
	}
	defer f.Close()

	return parseSheets(f)
}

// ParseFile decodes an xlsx workbook from disk
func ParseFile(path string) (table.Set, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apierrors.NewParseError(path, "", err)
	}
	defer f.Close()

	set, err := parseSheets(f)
	var perr *apierrors.ParseError
	if stderrors.As(err, &perr) {
		perr.FileID = path
	}
	return set, err
}

func parseSheets(f *excelize.File) (table.Set, error) {
	sheets := f.GetSheetList()
	set := make(table.Set, len(sheets))
	for _, sheet := range sheets {
		tbl, err := parseSheet(f, sheet)
		if err != nil {
			return nil, apierrors.NewParseError("", sheet, err)
		}
		set[sheet] = tbl
	}
	return set, nil
}

func parseSheet(f *excelize.File, sheet string) (*table.Table, error) {
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read raw rows: %w", err)
	}
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(raw) == 0 {
		return table.New(), nil
	}

	width := 0
	for _, row := range raw {
		if len(row) > width {
			width = len(row)
		}
	}

	tbl := table.New(normalizeHeaders(formattedRow(formatted, 0, raw[0]), width)...)

	for r := 1; r < len(raw); r++ {
		display := formattedRow(formatted, r, raw[r])
		values := make([]table.Value, len(raw[r]))
		for c := range raw[r] {
			shown := ""
			if c < len(display) {
				shown = display[c]
			}
			values[c] = cellValue(raw[r][c], shown)
		}
		if err := tbl.AppendRow(values...); err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
	}
	return tbl, nil
}

// formattedRow returns the displayed row r, falling back to the raw row
func formattedRow(formatted [][]string, r int, raw []string) []string {
	if r < len(formatted) {
		return formatted[r]
	}
	return raw
}

// naTokens are read as missing values.
// Excel #N/A error cells arrive as the text "#N/A".
var naTokens = map[string]bool{
	"#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// cellValue classifies a cell from its raw and displayed text
func cellValue(raw, shown string) table.Value {
	if strings.TrimSpace(raw) == "" && strings.TrimSpace(shown) == "" {
		return table.Missing()
	}
	if naTokens[raw] || naTokens[shown] {
		return table.Missing()
	}
	rawNum, rawOK := parseRaw(raw)
	_, shownOK := parseDisplayed(shown)
	if rawOK && shownOK {
		return table.Number(rawNum)
	}
	if shown == "" {
		return table.Text(raw)
	}
	return table.Text(shown)
}

// parseRaw parses a stored cell value, which never carries separators
func parseRaw(s string) (float64, bool) {
	return parseFinite(strings.TrimSpace(s))
}

// parseDisplayed parses formatted cell text, tolerating thousands separators
func parseDisplayed(s string) (float64, bool) {
	return parseFinite(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normalizeHeaders pads the header row to width and makes every name unique
func normalizeHeaders(row []string, width int) []string {
	if len(row) > width {
		width = len(row)
	}
	headers := make([]string, width)
	used := make(map[string]bool, width)
	suffix := make(map[string]int)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(row) {
			name = strings.TrimSpace(row[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			base := name
			for n := suffix[base] + 1; ; n++ {
				name = fmt.Sprintf("%s.%d", base, n)
				if !used[name] {
					suffix[base] = n
					break
				}
			}
		}
		used[name] = true
		headers[i] = name
	}
	return headers
}
