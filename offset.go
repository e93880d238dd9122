package teianalytics

import (
	"slices"
)

// SortDirection is an ORDER BY direction.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Offset is the SQL-facing form of an nth-occurrence offset: the 1-based row
// number to pick after ordering by date in Direction.
type Offset struct {
	RowNumber uint32
	Direction SortDirection
}

// ResolveOffset maps positive offsets to the nth earliest occurrence and
// zero or negative offsets to the (|offset|+1)th latest one.
func ResolveOffset(offset int) Offset {
	if offset > 0 {
		return Offset{RowNumber: uint32(offset), Direction: SortAsc}
	}

	return Offset{RowNumber: uint32(-offset) + 1, Direction: SortDesc}
}

// SelectByOffset picks the item an offset addresses without SQL.
// Sorting items by cmp must put the latest occurrence first.
func SelectByOffset[T any](items []T, cmp func(a, b T) int, offset int) (T, bool) {
	var zero T

	sorted := slices.Clone(items)
	skip := -offset
	if offset > 0 {
		slices.SortStableFunc(sorted, func(a, b T) int { return cmp(b, a) })
		skip = offset - 1
	} else {
		slices.SortStableFunc(sorted, cmp)
	}

	if skip >= len(sorted) {
		return zero, false
	}

	return sorted[skip], true
}
