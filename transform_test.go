package teianalytics

import (
	"math"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"
)

func TestSafeNaN(t *testing.T) {
	t.Parallel()

	nan := math.NaN()

	tt := []struct {
		name     string
		input    any
		expected any
	}{
		{name: "nan", input: math.NaN(), expected: float64(0)},
		{name: "inf", input: math.Inf(1), expected: float64(0)},
		{name: "float32 nan", input: float32(math.NaN()), expected: float32(0)},
		{name: "finite", input: 1.5, expected: 1.5},
		{name: "pointer", input: &nan, expected: func() *float64 { v := 0.0; return &v }()},
		{name: "string", input: "NaN", expected: "NaN"},
		{name: "nil", input: nil, expected: nil},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, SafeNaN(tc.input))
		})
	}
}

func TestGrid_AddRow(t *testing.T) {
	t.Parallel()

	grid := NewGrid([]Field{
		{Expr: sq.Expr("t_1.trackedentity"), Alias: "trackedentity", Name: "Tracked entity", ValueType: ValueTypeText},
		{Expr: sq.Expr("t_1.weight"), Alias: "weight", Name: "Weight", ValueType: ValueTypeNumber},
	}, Paging{Page: 2, PageSize: 10})

	grid.AddRow([]any{[]byte("PQfMcpmXeFE"), math.NaN()})
	grid.AddRow([]any{"vOxUH373fy5", 3200.5})

	require.Equal(t, [][]any{{"PQfMcpmXeFE", float64(0)}, {"vOxUH373fy5", 3200.5}}, grid.Rows)
	require.Equal(t, []any{float64(0), 3200.5}, grid.Column("weight"))
	require.Nil(t, grid.Column("missing"))
	require.Equal(t, Pager{Page: 2, PageSize: 10}, grid.Pager)
}

func TestUnionGrids(t *testing.T) {
	t.Parallel()

	headers := []GridHeader{{Name: "trackedentity"}, {Name: "w75KJ2mc4zz"}}

	tt := []struct {
		name     string
		input    []*Grid
		expected *Grid
	}{
		{
			name: "empty",
		},
		{
			name: "pages of one query",
			input: []*Grid{
				{
					Headers: headers,
					Rows:    [][]any{{"a", "John"}, {"b", "Jane"}},
					Pager:   Pager{Page: 1, PageSize: 2, Total: 3},
				},
				nil,
				{
					Headers: headers,
					Rows:    [][]any{{"b", "Jane"}, {"c", "Joe"}},
					Pager:   Pager{Page: 2, PageSize: 2, Total: 3},
				},
			},
			expected: &Grid{
				Headers: headers,
				Rows:    [][]any{{"a", "John"}, {"b", "Jane"}, {"c", "Joe"}},
				Pager:   Pager{Page: 1, PageSize: 2, Total: 3},
			},
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, UnionGrids(tc.input...))
		})
	}
}
