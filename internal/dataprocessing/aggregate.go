package dataprocessing

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/infrastructure"
	"noisereports/internal/table"
)

// Mode selects how category tables from several workbooks are combined
type Mode int

const (
	// Compiled concatenates rows in input order
	Compiled Mode = iota
	// Overview averages numeric columns positionally
	Overview
)

func (m Mode) String() string {
	switch m {
	case Compiled:
		return "compiled"
	case Overview:
		return "overview"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode resolves a mode from its name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compiled":
		return Compiled, nil
	case "overview":
		return Overview, nil
	default:
		return 0, fmt.Errorf("unknown aggregation mode %q", s)
	}
}

// Status is the outcome of aggregating one category
type Status string

const (
	StatusAggregated Status = "aggregated"
	StatusEmpty      Status = "empty"
	StatusFailed     Status = "failed"
)

// TableSource resolves a file identifier to its parsed sheets
type TableSource interface {
	GetTables(ctx context.Context, id string) (table.Set, error)
}

// TableSourceFunc adapts a function to TableSource
type TableSourceFunc func(ctx context.Context, id string) (table.Set, error)

// GetTables calls f
func (f TableSourceFunc) GetTables(ctx context.Context, id string) (table.Set, error) {
	return f(ctx, id)
}

// Failure records a category whose aggregation was abandoned
type Failure struct {
	Category table.Category
	Err      *apierrors.AggregationShapeError
}

// AggregateResult holds one table per requested category. A category is never
// absent: failed and empty categories carry an empty table with declared headers.
type AggregateResult struct {
	Mode         Mode
	Categories   []table.Category
	Tables       map[table.Category]*table.Table
	Status       map[table.Category]Status
	Contributors map[table.Category]int
	Failures     []Failure
}

// Table returns the result table of a category
func (r *AggregateResult) Table(c table.Category) *table.Table {
	return r.Tables[c]
}

// Failed reports whether any category failed
func (r *AggregateResult) Failed() bool {
	return len(r.Failures) > 0
}

// FailureSummary joins failures as "category: reason" pairs
func (r *AggregateResult) FailureSummary() string {
	parts := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		parts[i] = f.Err.Error()
	}
	return strings.Join(parts, "; ")
}

// Aggregator combines category tables from many workbooks
type Aggregator struct {
	source  TableSource
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewAggregator creates an Aggregator reading tables from source. metrics may be nil.
func NewAggregator(source TableSource, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		source:  source,
		logger:  logger.With(slog.String("component", "aggregator")),
		metrics: metrics,
	}
}

// Aggregate resolves every id once, in order, and combines the requested
// categories. When categories is empty, overview mode covers every category and
// compiled mode covers the four report sheets.
//
// Remote and parse failures abort the call. Shape mismatches only fail the
// affected category and are listed in Failures.
func (a *Aggregator) Aggregate(ctx context.Context, ids []string, mode Mode, categories []table.Category) (*AggregateResult, error) {
	if mode != Compiled && mode != Overview {
		return nil, fmt.Errorf("unsupported aggregation mode %d", int(mode))
	}
	if len(categories) == 0 {
		if mode == Overview {
			categories = table.AllCategories()
		} else {
			categories = table.CompiledCategories()
		}
	}
	for _, c := range categories {
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %d", int(c))
		}
	}

	start := time.Now()
	sets, err := a.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &AggregateResult{
		Mode:         mode,
		Categories:   categories,
		Tables:       make(map[table.Category]*table.Table, len(categories)),
		Status:       make(map[table.Category]Status, len(categories)),
		Contributors: make(map[table.Category]int, len(categories)),
	}

	for _, c := range categories {
		spec := c.Spec()
		contributors := collect(sets, spec)
		result.Contributors[c] = len(contributors)

		var (
			tbl    *table.Table
			aggErr error
		)
		switch {
		case len(contributors) == 0:
			tbl = table.New(spec.DeclaredHeaders()...)
			result.Status[c] = StatusEmpty
		case mode == Compiled:
			tbl, aggErr = compile(contributors)
		case spec.Kind == table.Distinct:
			tbl, aggErr = distinct(spec, contributors)
		default:
			tbl, aggErr = average(spec, contributors)
		}

		if aggErr != nil {
			var shapeErr *apierrors.AggregationShapeError
			if !stderrors.As(aggErr, &shapeErr) {
				return nil, aggErr
			}
			tbl = table.New(spec.DeclaredHeaders()...)
			result.Status[c] = StatusFailed
			result.Failures = append(result.Failures, Failure{Category: c, Err: shapeErr})
			a.logger.WarnContext(ctx, "category aggregation failed",
				slog.String("category", spec.Sheet),
				slog.String("mode", mode.String()),
				slog.String("error", shapeErr.Error()))
		} else if len(contributors) > 0 {
			result.Status[c] = StatusAggregated
		}

		result.Tables[c] = tbl
		infrastructure.RecordAggregateCategory(ctx, a.metrics, mode.String(), spec.Key, string(result.Status[c]))
	}

	a.logger.InfoContext(ctx, "aggregation complete",
		slog.String("mode", mode.String()),
		slog.Int("files", len(ids)),
		slog.Int("categories", len(categories)),
		slog.Int("failures", len(result.Failures)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// resolve fetches each distinct id once, sequentially, in input order
func (a *Aggregator) resolve(ctx context.Context, ids []string) ([]table.Set, error) {
	resolved := make(map[string]table.Set, len(ids))
	sets := make([]table.Set, 0, len(ids))
	for _, id := range ids {
		if set, ok := resolved[id]; ok {
			sets = append(sets, set)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := a.source.GetTables(ctx, id)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to resolve tables",
				slog.String("file_id", id),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		resolved[id] = set
		sets = append(sets, set)
	}
	return sets, nil
}

// collect returns the category's sheet from every set that has it, in order.
// Distinct categories only count tables carrying the identifying column.
func collect(sets []table.Set, spec table.CategorySpec) []*table.Table {
	var out []*table.Table
	for _, set := range sets {
		tbl, ok := set.Sheet(spec.Sheet)
		if !ok {
			continue
		}
		if spec.Kind == table.Distinct && tbl.ColumnIndex(spec.IDColumn) < 0 {
			continue
		}
		out = append(out, tbl)
	}
	return out
}

// compile concatenates rows over the union of columns in first-seen order
func compile(tables []*table.Table) (*table.Table, error) {
	var headers []string
	seen := make(map[string]bool)
	total := 0
	for _, t := range tables {
		for _, h := range t.Headers() {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
		total += t.Rows()
	}

	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		values := make([]table.Value, 0, total)
		for _, t := range tables {
			src, ok := t.Column(h)
			for r := 0; r < t.Rows(); r++ {
				if ok {
					values = append(values, src.Values[r])
				} else {
					values = append(values, table.Missing())
				}
			}
		}
		cols[i] = table.Column{Name: h, Values: values}
	}
	return table.FromColumns(cols...)
}

// distinct lists unique identifiers, keeping first occurrences. A blank ID
// is a value like any other and is kept once.
func distinct(spec table.CategorySpec, tables []*table.Table) (*table.Table, error) {
	var values []table.Value
	for _, t := range tables {
		col, _ := t.Column(spec.IDColumn)
		for _, v := range col.Values {
			if containsValue(values, v) {
				continue
			}
			values = append(values, v)
		}
	}
	return table.FromColumns(table.Column{Name: spec.IDColumn, Values: values})
}

func containsValue(values []table.Value, v table.Value) bool {
	for _, existing := range values {
		if existing.Equal(v) {
			return true
		}
	}
	return false
}

// accumulator tracks a running sum and valid count per (column, row)
type accumulator struct {
	sums   [][]float64
	counts [][]int
}

func newAccumulator(cols, rows int) *accumulator {
	acc := &accumulator{
		sums:   make([][]float64, cols),
		counts: make([][]int, cols),
	}
	for c := 0; c < cols; c++ {
		acc.sums[c] = make([]float64, rows)
		acc.counts[c] = make([]int, rows)
	}
	return acc
}

func (a *accumulator) add(col, row int, v table.Value) {
	if v.Kind != table.KindNumber {
		return
	}
	a.sums[col][row] += v.Num
	a.counts[col][row]++
}

func (a *accumulator) mean(col, row int) table.Value {
	if a.counts[col][row] == 0 {
		return table.Missing()
	}
	return table.Number(roundTenths(a.sums[col][row] / float64(a.counts[col][row])))
}

// roundTenths rounds to one decimal place, halves to even
func roundTenths(x float64) float64 {
	return math.RoundToEven(x*10) / 10
}

// average copies the fixed columns of the reference table and averages the
// numeric range positionally across every contributor.
func average(spec table.CategorySpec, tables []*table.Table) (*table.Table, error) {
	ref := tables[0]
	category := spec.Sheet

	for _, name := range spec.FixedColumns {
		if ref.ColumnIndex(name) < 0 {
			return nil, apierrors.NewAggregationShapeError(category, -1, "missing fixed column %q", name)
		}
	}
	startIdx, endIdx := ref.ColumnIndex(spec.RangeStart), ref.ColumnIndex(spec.RangeEnd)
	switch {
	case startIdx < 0:
		return nil, apierrors.NewAggregationShapeError(category, -1, "missing range start column %q", spec.RangeStart)
	case endIdx < 0:
		return nil, apierrors.NewAggregationShapeError(category, -1, "missing range end column %q", spec.RangeEnd)
	case endIdx < startIdx:
		return nil, apierrors.NewAggregationShapeError(category, -1, "column %q precedes %q", spec.RangeEnd, spec.RangeStart)
	}
	fixed := make(map[string]bool, len(spec.FixedColumns))
	for _, name := range spec.FixedColumns {
		fixed[name] = true
	}
	var numeric []string
	for _, name := range ref.Headers()[startIdx : endIdx+1] {
		if !fixed[name] {
			numeric = append(numeric, name)
		}
	}
	rows := ref.Rows()

	acc := newAccumulator(len(numeric), rows)
	for i, t := range tables {
		if t.Rows() != rows {
			return nil, apierrors.NewAggregationShapeError(category, i, "has %d rows, reference has %d", t.Rows(), rows)
		}
		for c, name := range numeric {
			col, ok := t.Column(name)
			if !ok {
				return nil, apierrors.NewAggregationShapeError(category, i, "missing numeric column %q", name)
			}
			for r, v := range col.Values {
				if v.Kind == table.KindText {
					return nil, apierrors.NewAggregationShapeError(category, i, "non-numeric value %q in column %q row %d", v.Text, name, r+1)
				}
				acc.add(c, r, v)
			}
		}
	}

	cols := make([]table.Column, 0, len(spec.FixedColumns)+len(numeric))
	for _, name := range spec.FixedColumns {
		src, _ := ref.Column(name)
		values := make([]table.Value, len(src.Values))
		copy(values, src.Values)
		cols = append(cols, table.Column{Name: name, Values: values})
	}
	for c, name := range numeric {
		values := make([]table.Value, rows)
		for r := 0; r < rows; r++ {
			values[r] = acc.mean(c, r)
		}
		cols = append(cols, table.Column{Name: name, Values: values})
	}

	out, err := table.FromColumns(cols...)
	if err != nil {
		return nil, apierrors.NewAggregationShapeError(category, -1, "%v", err)
	}
	return out, nil
}
