package teianalytics

import (
	"fmt"
	"math"
)

// GridHeader describes one column of a Grid.
type GridHeader struct {
	Name      string    `json:"name"`
	Column    string    `json:"column"`
	ValueType ValueType `json:"valueType"`
}

// Pager is the paging state of a Grid.
type Pager struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Total    uint64 `json:"total,omitempty"`
}

// Grid is the tabular result of a query, one row per tracked entity.
type Grid struct {
	Headers []GridHeader `json:"headers"`
	Rows    [][]any      `json:"rows"`
	Pager   Pager        `json:"pager"`
}

// NewGrid returns an empty grid with one header per select field.
func NewGrid(fields []Field, paging Paging) *Grid {
	headers := make([]GridHeader, 0, len(fields))
	for _, f := range fields {
		headers = append(headers, GridHeader{
			Name:      f.Alias,
			Column:    f.Name,
			ValueType: f.ValueType,
		})
	}

	return &Grid{
		Headers: headers,
		Rows:    make([][]any, 0),
		Pager:   Pager{Page: paging.Page, PageSize: paging.PageSize},
	}
}

// AddRow appends scanned values, normalizing driver types.
func (g *Grid) AddRow(values []any) {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = SafeNaN(normalizeValue(v))
	}

	g.Rows = append(g.Rows, row)
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case []byte:
		return string(tv)
	case *any:
		if tv == nil {
			return nil
		}
		return normalizeValue(*tv)
	}

	return v
}

// SafeNaN replaces non finite floats with 0, they can not be encoded as JSON.
func SafeNaN(i any) any {
	switch v := i.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return float64(0)
		}
	case *float64:
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			*v = 0
			return v
		}
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return float32(0)
		}
	}

	return i
}

// Column returns the values of the named column.
func (g *Grid) Column(name string) []any {
	idx := -1
	for i, h := range g.Headers {
		if h.Name == name {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil
	}

	values := make([]any, 0, len(g.Rows))
	for _, row := range g.Rows {
		values = append(values, row[idx])
	}

	return values
}

type keyUnion string

// UnionGrids concatenates pages of one query, keeping the headers of the
// first grid. Rows of a tracked entity already present are skipped.
func UnionGrids(grids ...*Grid) *Grid {
	if len(grids) == 0 || grids[0] == nil {
		return nil
	}

	result := &Grid{
		Headers: grids[0].Headers,
		Rows:    make([][]any, 0, len(grids)*len(grids[0].Rows)),
		Pager:   Pager{Page: grids[0].Pager.Page, PageSize: grids[0].Pager.PageSize},
	}

	index := make(map[keyUnion]struct{})
	for _, g := range grids {
		if g == nil {
			continue
		}

		for _, row := range g.Rows {
			key := makeKeyUnion(row)
			if _, ok := index[key]; ok {
				continue
			}

			index[key] = struct{}{}
			result.Rows = append(result.Rows, row)
		}

		result.Pager.Total = max(result.Pager.Total, g.Pager.Total)
	}

	return result
}

func makeKeyUnion(row []any) keyUnion {
	if len(row) == 0 {
		return ""
	}

	return keyUnion(fmt.Sprintf("%v", row[0]))
}
