package table

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies what a Value holds
type Kind uint8

const (
	// KindMissing is an empty cell or a NaN number
	KindMissing Kind = iota
	// KindNumber is a numeric cell
	KindNumber
	// KindText is a string or categorical cell
	KindText
)

// Value is a single cell: numeric, text or missing
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

// Missing returns the missing value
func Missing() Value {
	return Value{}
}

// Number returns a numeric value. NaN is normalised to missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Kind: KindNumber, Num: f}
}

// Text returns a text value
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// IsMissing reports whether the value carries no data
func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// Equal compares kind and payload exactly
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Text == o.Text
	default:
		return true
	}
}

// String renders the value the way it would appear in a CSV cell
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// Column is a named, ordered sequence of values
type Column struct {
	Name   string
	Values []Value
}

// Table is an ordered set of uniquely named, row-aligned columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New creates an empty table with the given headers and no rows
func New(headers ...string) *Table {
	t := &Table{index: make(map[string]int, len(headers))}
	for _, h := range headers {
		// duplicate headers are ignored so names stay unique
		_ = t.AddColumn(h, nil)
	}
	return t
}

// FromColumns builds a table from columns. Column names must be unique and every
// column must have the same length.
func FromColumns(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			t.rows = len(c.Values)
		}
		if err := t.AddColumn(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column. The first column added to an empty table sets the
// row count; later columns must match it.
func (t *Table) AddColumn(name string, values []Value) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(t.columns) == 0 {
		t.rows = len(values)
	} else if len(values) != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", name, len(values), t.rows)
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, Column{Name: name, Values: values})
	return nil
}

// AppendRow appends one row. Values are matched to columns by position and the
// row is padded with missing values when short.
func (t *Table) AppendRow(values ...Value) error {
	if len(values) > len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	for i := range t.columns {
		v := Missing()
		if i < len(values) {
			v = values[i]
		}
		t.columns[i].Values = append(t.columns[i].Values, v)
	}
	t.rows++
	return nil
}

// Rows returns the number of rows
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Width returns the number of columns
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Headers returns column names in order
func (t *Table) Headers() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []Column {
	if t == nil {
		return nil
	}
	return t.columns
}

// Column looks up a column by name
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// ColumnIndex returns the position of a column, or -1
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Row returns the values of row r in column order
func (t *Table) Row(r int) []Value {
	row := make([]Value, len(t.columns))
	for i, c := range t.columns {
		row[i] = c.Values[r]
	}
	return row
}

// IsEmpty reports whether the table has no rows
func (t *Table) IsEmpty() bool {
	return t.Rows() == 0
}

// Set maps sheet names to tables, one per sheet of a workbook
type Set map[string]*Table

// Sheet returns the table for a sheet name
func (s Set) Sheet(name string) (*Table, bool) {
	t, ok := s[name]
	return t, ok && t != nil
}
