package dataprocessing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/table"
)

// fakeSource serves prepared table sets and counts lookups per id
type fakeSource struct {
	sets  map[string]table.Set
	errs  map[string]error
	calls map[string]int
	order []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		sets:  make(map[string]table.Set),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) GetTables(_ context.Context, id string) (table.Set, error) {
	f.calls[id]++
	f.order = append(f.order, id)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.sets[id], nil
}

func nums(xs ...float64) []table.Value {
	out := make([]table.Value, len(xs))
	for i, x := range xs {
		out[i] = table.Number(x)
	}
	return out
}

func texts(xs ...string) []table.Value {
	out := make([]table.Value, len(xs))
	for i, x := range xs {
		out[i] = table.Text(x)
	}
	return out
}

func mustTable(t *testing.T, cols ...table.Column) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns(cols...)
	require.NoError(t, err)
	return tbl
}

// measurementTable builds a "Measurement averages" sheet with laeq as the only
// column between lden and the moving average
func measurementTable(t *testing.T, periods []string, laeq []float64) *table.Table {
	t.Helper()
	missing := make([]float64, len(laeq))
	for i := range missing {
		missing[i] = math.NaN()
	}
	return mustTable(t,
		table.Column{Name: "Period", Values: texts(periods...)},
		table.Column{Name: "lden", Values: nums(missing...)},
		table.Column{Name: "laeq", Values: nums(laeq...)},
		table.Column{Name: "lceq_1min_moving_average", Values: nums(missing...)},
	)
}

func metadataTable(t *testing.T, ids ...string) *table.Table {
	t.Helper()
	return mustTable(t, table.Column{Name: "ID", Values: texts(ids...)})
}

func columnNums(t *testing.T, tbl *table.Table, name string) []float64 {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	out := make([]float64, len(col.Values))
	for i, v := range col.Values {
		if v.IsMissing() {
			out[i] = math.NaN()
			continue
		}
		out[i] = v.Num
	}
	return out
}

func TestAggregateOverviewAveragesPositionally(t *testing.T) {
	nan := math.NaN()
	src := newFakeSource()
	periods := []string{"Day", "Evening", "Night"}
	src.sets["a"] = table.Set{"Measurement averages": measurementTable(t, periods, []float64{10, nan, 30})}
	src.sets["b"] = table.Set{"Measurement averages": measurementTable(t, periods, []float64{20, 20, nan})}
	src.sets["c"] = table.Set{"Measurement averages": measurementTable(t, periods, []float64{nan, 10, 10})}

	agg := NewAggregator(src, nil, nil)
	res, err := agg.Aggregate(context.Background(), []string{"a", "b", "c"}, Overview, []table.Category{table.MeasurementAverages})
	require.NoError(t, err)

	tbl := res.Table(table.MeasurementAverages)
	assert.Equal(t, []float64{15, 15, 20}, columnNums(t, tbl, "laeq"))
	assert.Equal(t, StatusAggregated, res.Status[table.MeasurementAverages])
	assert.Equal(t, 3, res.Contributors[table.MeasurementAverages])
	assert.Equal(t, []string{"Period", "lden", "laeq", "lceq_1min_moving_average"}, tbl.Headers())

	period, _ := tbl.Column("Period")
	assert.Equal(t, texts(periods...), period.Values, "fixed columns are copied from the reference")

	lden, _ := tbl.Column("lden")
	for _, v := range lden.Values {
		assert.True(t, v.IsMissing(), "all-missing positions stay missing")
	}
}

func TestAggregateOverviewRoundsToOneDecimal(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day", "Night"}, []float64{50.0, 40.04})}
	src.sets["b"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day", "Night"}, []float64{50.5, 40.0})}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b"}, Overview, []table.Category{table.MeasurementAverages})
	require.NoError(t, err)
	assert.Equal(t, []float64{50.2, 40}, columnNums(t, res.Table(table.MeasurementAverages), "laeq"))
}

func TestRoundTenths(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{50.25, 50.2},
		{50.75, 50.8},
		{12.04, 12},
		{-0.25, -0.2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, roundTenths(tt.in), 1e-9, "round(%v)", tt.in)
	}
}

func TestAggregateCompiledConcatenatesInIDOrder(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day", "Night"}, []float64{1, 2})}
	src.sets["b"] = table.Set{}
	src.sets["c"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day", "Evening", "Night"}, []float64{3, 4, 5})}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"c", "b", "a"}, Compiled, nil)
	require.NoError(t, err)

	tbl := res.Table(table.MeasurementAverages)
	assert.Equal(t, 5, tbl.Rows())
	assert.Equal(t, []float64{3, 4, 5, 1, 2}, columnNums(t, tbl, "laeq"))
	assert.Equal(t, 2, res.Contributors[table.MeasurementAverages])

	assert.ElementsMatch(t, table.CompiledCategories(), res.Categories)
	assert.NotContains(t, res.Tables, table.Metadata)
	assert.Equal(t, StatusEmpty, res.Status[table.WeeklyAverages])
}

func TestAggregateCompiledUnionsColumns(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Weekly averages": mustTable(t,
		table.Column{Name: "Period", Values: texts("Day")},
		table.Column{Name: "lden", Values: nums(60)},
	)}
	src.sets["b"] = table.Set{"Weekly averages": mustTable(t,
		table.Column{Name: "Period", Values: texts("Night")},
		table.Column{Name: "extra", Values: nums(7)},
	)}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b"}, Compiled, []table.Category{table.WeeklyAverages})
	require.NoError(t, err)

	tbl := res.Table(table.WeeklyAverages)
	assert.Equal(t, []string{"Period", "lden", "extra"}, tbl.Headers())
	lden, _ := tbl.Column("lden")
	assert.True(t, lden.Values[1].IsMissing())
	extra, _ := tbl.Column("extra")
	assert.True(t, extra.Values[0].IsMissing())
}

func TestAggregateZeroContributors(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Unrelated": metadataTable(t, "x")}

	for _, mode := range []Mode{Compiled, Overview} {
		t.Run(mode.String(), func(t *testing.T) {
			res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a"}, mode, []table.Category{table.WeeklyAverages})
			require.NoError(t, err)

			tbl := res.Table(table.WeeklyAverages)
			require.NotNil(t, tbl)
			assert.True(t, tbl.IsEmpty())
			assert.Equal(t, table.WeeklyAverages.Spec().DeclaredHeaders(), tbl.Headers())
			assert.Equal(t, StatusEmpty, res.Status[table.WeeklyAverages])
			assert.False(t, res.Failed())
		})
	}
}

func TestAggregateMetadataDistinct(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Metadata": metadataTable(t, "MP1", "MP2")}
	src.sets["b"] = table.Set{"Metadata": metadataTable(t, "MP2", "MP3")}
	src.sets["c"] = table.Set{"Metadata": mustTable(t, table.Column{Name: "Site", Values: texts("MP9")})}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b", "c"}, Overview, []table.Category{table.Metadata})
	require.NoError(t, err)

	tbl := res.Table(table.Metadata)
	id, ok := tbl.Column("ID")
	require.True(t, ok)
	assert.Equal(t, texts("MP1", "MP2", "MP3"), id.Values)
	assert.Equal(t, 2, res.Contributors[table.Metadata], "tables without an ID column do not contribute")
}

func TestAggregateMetadataKeepsOneBlankID(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Metadata": mustTable(t, table.Column{Name: "ID", Values: []table.Value{table.Text("MP1"), table.Missing()}})}
	src.sets["b"] = table.Set{"Metadata": mustTable(t, table.Column{Name: "ID", Values: []table.Value{table.Missing(), table.Text("MP2")}})}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b"}, Overview, []table.Category{table.Metadata})
	require.NoError(t, err)

	id, ok := res.Table(table.Metadata).Column("ID")
	require.True(t, ok)
	assert.Equal(t, []table.Value{table.Text("MP1"), table.Missing(), table.Text("MP2")}, id.Values)
}

func TestAggregateIsolatesShapeFailures(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{
		"Metadata":             metadataTable(t, "MP1"),
		"Measurement averages": measurementTable(t, []string{"Day", "Night"}, []float64{1, 2}),
	}
	src.sets["b"] = table.Set{
		"Metadata":             metadataTable(t, "MP2"),
		"Measurement averages": measurementTable(t, []string{"Day"}, []float64{3}),
	}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b"}, Overview, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status[table.MeasurementAverages])
	failed := res.Table(table.MeasurementAverages)
	assert.True(t, failed.IsEmpty())
	assert.Equal(t, table.MeasurementAverages.Spec().DeclaredHeaders(), failed.Headers())

	require.Len(t, res.Failures, 1)
	assert.Equal(t, table.MeasurementAverages, res.Failures[0].Category)
	assert.True(t, errors.Is(res.Failures[0].Err, apierrors.ErrAggregationShape))
	assert.Equal(t, 1, res.Failures[0].Err.Source)
	assert.Contains(t, res.FailureSummary(), "has 1 rows, reference has 2")

	assert.Equal(t, StatusAggregated, res.Status[table.Metadata])
	assert.Equal(t, 2, res.Table(table.Metadata).Rows())
	assert.Equal(t, StatusEmpty, res.Status[table.WeeklyAverages])
}

func TestAggregateShapeErrors(t *testing.T) {
	good := measurementTable(t, []string{"Day"}, []float64{1})
	tests := []struct {
		name   string
		tables []*table.Table
		source int
		reason string
	}{
		{
			name: "reference lacks fixed column",
			tables: []*table.Table{mustTable(t,
				table.Column{Name: "lden", Values: nums(1)},
				table.Column{Name: "lceq_1min_moving_average", Values: nums(1)},
			)},
			source: -1,
			reason: `missing fixed column "Period"`,
		},
		{
			name: "reference lacks range end",
			tables: []*table.Table{mustTable(t,
				table.Column{Name: "Period", Values: texts("Day")},
				table.Column{Name: "lden", Values: nums(1)},
			)},
			source: -1,
			reason: `missing range end column "lceq_1min_moving_average"`,
		},
		{
			name: "contributor lacks numeric column",
			tables: []*table.Table{good, mustTable(t,
				table.Column{Name: "Period", Values: texts("Day")},
				table.Column{Name: "lden", Values: nums(1)},
				table.Column{Name: "lceq_1min_moving_average", Values: nums(1)},
			)},
			source: 1,
			reason: `missing numeric column "laeq"`,
		},
		{
			name: "text in numeric range",
			tables: []*table.Table{good, mustTable(t,
				table.Column{Name: "Period", Values: texts("Day")},
				table.Column{Name: "lden", Values: nums(1)},
				table.Column{Name: "laeq", Values: texts("overload")},
				table.Column{Name: "lceq_1min_moving_average", Values: nums(1)},
			)},
			source: 1,
			reason: `non-numeric value "overload" in column "laeq" row 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := average(table.MeasurementAverages.Spec(), tt.tables)
			var shapeErr *apierrors.AggregationShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.source, shapeErr.Source)
			assert.Equal(t, tt.reason, shapeErr.Reason)
		})
	}
}

func TestAggregateAbortsOnFetchError(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Metadata": metadataTable(t, "MP1")}
	src.errs["b"] = apierrors.NewRemoteFetchError("b", "metadata", errors.New("boom"))

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b", "c"}, Overview, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, apierrors.ErrRemoteFetch))
	assert.Equal(t, []string{"a", "b"}, src.order, "resolution stops at the first failure")
}

func TestAggregateResolvesEachIDOnce(t *testing.T) {
	src := newFakeSource()
	src.sets["a"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day"}, []float64{10})}
	src.sets["b"] = table.Set{"Measurement averages": measurementTable(t, []string{"Day"}, []float64{20})}

	res, err := NewAggregator(src, nil, nil).Aggregate(context.Background(), []string{"a", "b", "a"}, Compiled, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, src.calls)
	assert.Equal(t, []float64{10, 20, 10}, columnNums(t, res.Table(table.MeasurementAverages), "laeq"))
}

func TestAggregateRejectsUnknownInputs(t *testing.T) {
	agg := NewAggregator(newFakeSource(), nil, nil)

	_, err := agg.Aggregate(context.Background(), nil, Mode(9), nil)
	assert.Error(t, err)

	_, err = agg.Aggregate(context.Background(), nil, Overview, []table.Category{table.Category(42)})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Overview ")
	require.NoError(t, err)
	assert.Equal(t, Overview, m)

	_, err = ParseMode("weekly")
	assert.Error(t, err)
}
