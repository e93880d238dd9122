package teianalytics

import (
	"cmp"
	"slices"

	sq "github.com/Masterminds/squirrel"
)

// Renderable is a SQL fragment with its bound arguments.
type Renderable = sq.Sqlizer

// Field is one column of the select list.
type Field struct {
	Expr Renderable
	// Alias is the result column name, quoted when rendered.
	Alias     string
	Name      string
	ValueType ValueType
}

func (f Field) ToSql() (string, []any, error) {
	query, args, err := f.Expr.ToSql()
	if err != nil {
		return "", nil, err
	}

	if f.Alias == "" {
		return query, args, nil
	}

	return query + " AS " + quoteAlias(f.Alias), args, nil
}

// GroupableCondition is a filter predicate tagged with the group it is OR'ed in.
type GroupableCondition struct {
	GroupID   string
	Predicate Renderable
}

// IndexedOrder is an ORDER BY key tagged with its position in the request.
type IndexedOrder struct {
	Index int
	Order Renderable
}

// RenderableSQLQuery is the compiled, not yet stringified query.
type RenderableSQLQuery struct {
	SelectFields        []Field
	GroupableConditions []GroupableCondition
	OrderClauses        []IndexedOrder
}

// Merge returns a query holding the fragments of q followed by the ones of others.
func (q *RenderableSQLQuery) Merge(others ...*RenderableSQLQuery) *RenderableSQLQuery {
	merged := &RenderableSQLQuery{}
	for _, part := range append([]*RenderableSQLQuery{q}, others...) {
		if part == nil {
			continue
		}

		merged.SelectFields = append(merged.SelectFields, part.SelectFields...)
		merged.GroupableConditions = append(merged.GroupableConditions, part.GroupableConditions...)
		merged.OrderClauses = append(merged.OrderClauses, part.OrderClauses...)
	}

	return merged
}

// WhereClause ANDs the condition groups, in order of first appearance, and
// ORs the predicates inside each group. It returns nil when there is nothing to filter.
func (q *RenderableSQLQuery) WhereClause() Renderable {
	if q == nil || len(q.GroupableConditions) == 0 {
		return nil
	}

	order := make([]string, 0, len(q.GroupableConditions))
	groups := make(map[string][]Renderable, len(q.GroupableConditions))
	for _, c := range q.GroupableConditions {
		if _, ok := groups[c.GroupID]; !ok {
			order = append(order, c.GroupID)
		}
		groups[c.GroupID] = append(groups[c.GroupID], c.Predicate)
	}

	and := make(sq.And, 0, len(order))
	for _, id := range order {
		predicates := groups[id]
		if len(predicates) == 1 {
			and = append(and, predicates[0])
			continue
		}

		and = append(and, sq.Or(predicates))
	}

	if len(and) == 1 {
		return and[0]
	}

	return and
}

// OrderBy returns the order clauses sorted by request position.
func (q *RenderableSQLQuery) OrderBy() []Renderable {
	if q == nil {
		return nil
	}

	clauses := slices.Clone(q.OrderClauses)
	slices.SortStableFunc(clauses, func(a, b IndexedOrder) int {
		return cmp.Compare(a.Index, b.Index)
	})

	orders := make([]Renderable, 0, len(clauses))
	for _, c := range clauses {
		orders = append(orders, c.Order)
	}

	return orders
}
