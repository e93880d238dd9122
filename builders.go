package teianalytics

import (
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	orgUnitPathColumn   = "oupath"
	orgUnitParentColumn = "ouparent"
	orgUnitPathSep      = "/"
)

// columnFunc resolves the bare column holding a dimension.
type columnFunc func(d *DimensionIdentifier[*DimensionParam]) (string, error)

// conditionFunc builds the predicate of a dimension on its qualified column.
type conditionFunc func(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) (Renderable, error)

// dimensionBuilder selects, filters and sorts dimensions stored in one column
// of the level their identifier addresses.
type dimensionBuilder struct {
	kinds     []BuilderKind
	column    columnFunc
	condition conditionFunc
}

func (b *dimensionBuilder) Kinds() []BuilderKind {
	return b.kinds
}

func (b *dimensionBuilder) AlwaysRun() bool {
	return false
}

func (b *dimensionBuilder) Build(
	qc *QueryContext,
	headers, dimensions []*DimensionIdentifier[*DimensionParam],
	sorting []*SortingParam,
) (*RenderableSQLQuery, error) {
	query := &RenderableSQLQuery{}

	for _, h := range headers {
		column, err := b.column(h)
		if err != nil {
			return nil, err
		}

		query.SelectFields = append(query.SelectFields, Field{
			Expr:      valueAtLevel(qc, h, column),
			Alias:     h.ColumnAlias(),
			Name:      h.Dimension.HeaderName(),
			ValueType: h.Dimension.ValueType(),
		})
	}

	for _, d := range dimensions {
		column, err := b.column(d)
		if err != nil {
			return nil, err
		}

		cond, err := b.condition(qc, d, columnAtLevel(d, column))
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}

		query.GroupableConditions = append(query.GroupableConditions, GroupableCondition{
			GroupID:   groupID(d),
			Predicate: existsAtLevel(qc, d, cond),
		})
	}

	for _, s := range sorting {
		column, err := b.column(s.OrderBy)
		if err != nil {
			return nil, err
		}

		query.OrderClauses = append(query.OrderClauses, IndexedOrder{
			Index: s.Index,
			Order: orderAtLevel(qc, s.OrderBy, column, s.Direction),
		})
	}

	return query, nil
}

func groupID(d *DimensionIdentifier[*DimensionParam]) string {
	if d.GroupID != "" {
		return d.GroupID
	}

	return d.Key()
}

func itemsConditionFunc(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) (Renderable, error) {
	return itemsCondition(qc, column, d.Dimension)
}

func staticColumn(d *DimensionIdentifier[*DimensionParam]) (string, error) {
	static, ok := d.Dimension.StaticDimension()
	if !ok {
		return "", fmt.Errorf("%w: %s is not a static dimension", ErrIllegalQuery, d)
	}

	return static.ColumnAt(d.Type()), nil
}

func queryItemColumn(d *DimensionIdentifier[*DimensionParam]) (string, error) {
	item := d.Dimension.QueryItem()
	if item == nil {
		return "", fmt.Errorf("%w: %s is not a query item", ErrIllegalQuery, d)
	}

	return quoteIdentifier(item.UID), nil
}

// NewEnrollmentBuilder handles static columns of the addressed enrollment.
func NewEnrollmentBuilder() QueryBuilder {
	return &dimensionBuilder{
		kinds:     []BuilderKind{KindEnrollmentStatic},
		column:    staticColumn,
		condition: itemsConditionFunc,
	}
}

// NewEventBuilder handles static columns of the addressed event.
func NewEventBuilder() QueryBuilder {
	return &dimensionBuilder{
		kinds:     []BuilderKind{KindEventStatic},
		column:    staticColumn,
		condition: eventConditionFunc,
	}
}

// eventConditionFunc rejects event status filters on scheduled events, they
// are never ranked so the predicate could not match.
func eventConditionFunc(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) (Renderable, error) {
	if static, ok := d.Dimension.StaticDimension(); ok && static == StaticEventStatus {
		for _, item := range d.Dimension.Items {
			for _, v := range item.Values {
				if strings.EqualFold(v, scheduledEventStatus) {
					return nil, fmt.Errorf("%w: %s %s is never addressed by an event offset",
						ErrIllegalQuery, static, scheduledEventStatus)
				}
			}
		}
	}

	return itemsConditionFunc(qc, d, column)
}

// NewDataElementBuilder handles data values of the addressed event.
func NewDataElementBuilder() QueryBuilder {
	return &dimensionBuilder{
		kinds:     []BuilderKind{KindDataElement},
		column:    queryItemColumn,
		condition: itemsConditionFunc,
	}
}

// NewPeriodBuilder handles pe dimensions and date filters. Every listed period
// matches rows whose time field falls into it.
func NewPeriodBuilder() QueryBuilder {
	return &dimensionBuilder{
		kinds:     []BuilderKind{KindPeriod},
		column:    periodColumn,
		condition: periodCondition,
	}
}

func periodColumn(d *DimensionIdentifier[*DimensionParam]) (string, error) {
	obj := d.Dimension.DimensionalObject()
	if obj == nil {
		return "", fmt.Errorf("%w: %s is not a period", ErrIllegalQuery, d)
	}

	static, ok := obj.TimeField.StaticDimension(d.Type())
	if !ok {
		return "", fmt.Errorf("%w: time field %s is not available at %s level", ErrIllegalQuery, obj.TimeField, d.Type())
	}

	return static.ColumnAt(d.Type()), nil
}

func periodCondition(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) (Renderable, error) {
	or := sq.Or{}
	for _, item := range d.Dimension.Items {
		for _, id := range item.Values {
			if id == "" {
				continue
			}

			period, err := ParsePeriod(id, qc.RelativePeriodDate)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIllegalQuery, err)
			}

			or = append(or, sq.And{
				sq.GtOrEq{column: period.Start.Format(periodDateLayout)},
				sq.Lt{column: period.End.Format(periodDateLayout)},
			})
		}
	}

	switch len(or) {
	case 0:
		return nil, nil
	case 1:
		return or[0], nil
	}

	return or, nil
}

// NewOrgUnitBuilder handles ou dimensions, matching units by the org unit mode
// of the request.
func NewOrgUnitBuilder() QueryBuilder {
	return &dimensionBuilder{
		kinds: []BuilderKind{KindOrganisationUnit},
		column: func(d *DimensionIdentifier[*DimensionParam]) (string, error) {
			return StaticOrgUnit.ColumnAt(d.Type()), nil
		},
		condition: orgUnitCondition,
	}
}

func orgUnitCondition(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) (Renderable, error) {
	units := make([]string, 0)
	for _, item := range d.Dimension.Items {
		for _, v := range item.Values {
			if v != "" && v != NullValue {
				units = append(units, v)
			}
		}
	}

	if len(units) == 0 {
		return nil, nil
	}

	// column is qualified, the hierarchy columns share its alias
	alias, _, _ := strings.Cut(column, ".")

	or := make(sq.Or, 0, len(units))
	for _, unit := range units {
		switch qc.OrgUnitMode {
		case OrgUnitModeSelected:
			or = append(or, sq.Eq{column: unit})
		case OrgUnitModeChildren:
			or = append(or, sq.Or{sq.Eq{column: unit}, sq.Eq{qualified(alias, orgUnitParentColumn): unit}})
		default:
			// units match whole path segments only
			path := "(" + qualified(alias, orgUnitPathColumn) + " || '" + orgUnitPathSep + "')"
			or = append(or, likeCondition(qc, path, "LIKE",
				"%"+orgUnitPathSep+likeEscaper.Replace(unit)+orgUnitPathSep+"%"))
		}
	}

	if len(or) == 1 {
		return or[0], nil
	}

	return or, nil
}

// trackedEntityBuilder owns the columns of the tracked entity row itself. It
// always runs: every result row is one tracked entity.
type trackedEntityBuilder struct {
	dimensionBuilder
}

// NewTrackedEntityBuilder handles tracked entity static columns and attributes.
func NewTrackedEntityBuilder() QueryBuilder {
	return &trackedEntityBuilder{
		dimensionBuilder: dimensionBuilder{
			kinds:     []BuilderKind{KindTrackedEntityStatic, KindTrackedEntityAttribute},
			column:    trackedEntityColumn,
			condition: itemsConditionFunc,
		},
	}
}

func (b *trackedEntityBuilder) AlwaysRun() bool {
	return true
}

func (b *trackedEntityBuilder) Build(
	qc *QueryContext,
	headers, dimensions []*DimensionIdentifier[*DimensionParam],
	sorting []*SortingParam,
) (*RenderableSQLQuery, error) {
	query, err := b.dimensionBuilder.Build(qc, withoutBaseColumn(headers), dimensions, sorting)
	if err != nil {
		return nil, err
	}

	base := Field{
		Expr:      sq.Expr(qualified(teiAlias, teiColumn)),
		Alias:     StaticTrackedEntity.NormalizedName(),
		Name:      StaticTrackedEntity.HeaderName(),
		ValueType: StaticTrackedEntity.ValueType(),
	}
	query.SelectFields = append([]Field{base}, query.SelectFields...)

	// ties are broken by tracked entity so that pages are stable
	query.OrderClauses = append(query.OrderClauses, IndexedOrder{
		Index: math.MaxInt,
		Order: sq.Expr(qualified(teiAlias, teiColumn) + " " + string(SortAsc)),
	})

	return query, nil
}

func trackedEntityColumn(d *DimensionIdentifier[*DimensionParam]) (string, error) {
	if d.Dimension.IsQueryItem() {
		return queryItemColumn(d)
	}

	return staticColumn(d)
}

func withoutBaseColumn(headers []*DimensionIdentifier[*DimensionParam]) []*DimensionIdentifier[*DimensionParam] {
	out := make([]*DimensionIdentifier[*DimensionParam], 0, len(headers))
	for _, h := range headers {
		if s, ok := h.Dimension.StaticDimension(); ok && s == StaticTrackedEntity {
			continue
		}
		out = append(out, h)
	}

	return out
}

// DefaultBuilders returns one builder per dimension kind.
func DefaultBuilders() []QueryBuilder {
	return []QueryBuilder{
		NewTrackedEntityBuilder(),
		NewEnrollmentBuilder(),
		NewEventBuilder(),
		NewDataElementBuilder(),
		NewPeriodBuilder(),
		NewOrgUnitBuilder(),
	}
}
