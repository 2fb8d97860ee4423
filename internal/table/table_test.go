package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberNormalisesNaN(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
	assert.False(t, Number(0).IsMissing())
	assert.Equal(t, KindNumber, Number(1.5).Kind)
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same number", Number(1), Number(1), true},
		{"different number", Number(1), Number(2), false},
		{"same text", Text("A1"), Text("A1"), true},
		{"text vs number", Text("1"), Number(1), false},
		{"both missing", Missing(), Missing(), true},
		{"missing vs zero", Missing(), Number(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "55.3", Number(55.3).String())
	assert.Equal(t, "Day", Text("Day").String())
	assert.Equal(t, "", Missing().String())
}

func TestTableAppendRow(t *testing.T) {
	tbl := New("Period", "laeq", "lden")
	require.NoError(t, tbl.AppendRow(Text("Day"), Number(50)))
	require.NoError(t, tbl.AppendRow(Text("Night"), Number(40), Number(45)))

	assert.Equal(t, 2, tbl.Rows())
	assert.Equal(t, 3, tbl.Width())
	assert.Equal(t, []string{"Period", "laeq", "lden"}, tbl.Headers())

	lden, ok := tbl.Column("lden")
	require.True(t, ok)
	assert.True(t, lden.Values[0].IsMissing(), "short rows are padded with missing values")
	assert.Equal(t, 45.0, lden.Values[1].Num)

	assert.Error(t, tbl.AppendRow(Text("a"), Text("b"), Text("c"), Text("d")))
}

func TestTableColumnsMustAlign(t *testing.T) {
	_, err := FromColumns(
		Column{Name: "a", Values: []Value{Number(1), Number(2)}},
		Column{Name: "b", Values: []Value{Number(1)}},
	)
	assert.Error(t, err)

	_, err = FromColumns(
		Column{Name: "a", Values: []Value{Number(1)}},
		Column{Name: "a", Values: []Value{Number(2)}},
	)
	assert.Error(t, err, "duplicate column names are rejected")
}

func TestNewIgnoresDuplicateHeaders(t *testing.T) {
	tbl := New("ID", "ID")
	assert.Equal(t, []string{"ID"}, tbl.Headers())
	assert.True(t, tbl.IsEmpty())
}

func TestNilTableAccessors(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Rows())
	assert.Equal(t, 0, tbl.Width())
	assert.Nil(t, tbl.Headers())
	assert.Equal(t, -1, tbl.ColumnIndex("x"))
	_, ok := tbl.Column("x")
	assert.False(t, ok)
}

func TestSetSheet(t *testing.T) {
	set := Set{"Metadata": New("ID"), "Broken": nil}

	_, ok := set.Sheet("Metadata")
	assert.True(t, ok)
	_, ok = set.Sheet("Broken")
	assert.False(t, ok)
	_, ok = set.Sheet("Weekly averages")
	assert.False(t, ok)
}
