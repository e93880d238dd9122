package teianalytics

import (
	"errors"
	"fmt"
)

// ErrRegistry is returned for a builder set that does not cover every
// dimension kind exactly once.
var ErrRegistry = errors.New("invalid query builder registry")

// BuilderKind is the category a dimension is routed by.
type BuilderKind int

const (
	KindTrackedEntityStatic BuilderKind = iota
	KindTrackedEntityAttribute
	KindEnrollmentStatic
	KindEventStatic
	KindDataElement
	KindPeriod
	KindOrganisationUnit
)

var allBuilderKinds = []BuilderKind{
	KindTrackedEntityStatic,
	KindTrackedEntityAttribute,
	KindEnrollmentStatic,
	KindEventStatic,
	KindDataElement,
	KindPeriod,
	KindOrganisationUnit,
}

func (k BuilderKind) String() string {
	switch k {
	case KindTrackedEntityStatic:
		return "TRACKED_ENTITY_STATIC"
	case KindTrackedEntityAttribute:
		return "TRACKED_ENTITY_ATTRIBUTE"
	case KindEnrollmentStatic:
		return "ENROLLMENT_STATIC"
	case KindEventStatic:
		return "EVENT_STATIC"
	case KindDataElement:
		return "DATA_ELEMENT"
	case KindPeriod:
		return "PERIOD"
	case KindOrganisationUnit:
		return "ORGANISATION_UNIT"
	}

	return fmt.Sprintf("BuilderKind(%d)", int(k))
}

// Classify assigns a dimension to the single kind of builder responsible for it.
func Classify(d *DimensionIdentifier[*DimensionParam]) (BuilderKind, error) {
	if d == nil || d.Dimension == nil {
		return 0, fmt.Errorf("%w: empty dimension", ErrIllegalQuery)
	}

	level := d.Type()
	switch obj := d.Dimension.Object().(type) {
	case *DimensionalObject:
		switch obj.Type {
		case ObjectTypePeriod:
			return KindPeriod, nil
		case ObjectTypeOrgUnit:
			return KindOrganisationUnit, nil
		}

		return 0, fmt.Errorf("%w: dimension %s of type %s is not supported", ErrIllegalQuery, d, obj.Type)

	case *QueryItem:
		switch obj.ItemType {
		case ObjectTypeAttribute:
			if level != DimensionIdentifierTypeTEI {
				return 0, fmt.Errorf("%w: attribute %s is stored on the tracked entity", ErrIllegalQuery, d)
			}
			return KindTrackedEntityAttribute, nil
		case ObjectTypeDataElement:
			if level != DimensionIdentifierTypeEvent {
				return 0, fmt.Errorf("%w: data element %s is not fully qualified", ErrIllegalQuery, d)
			}
			return KindDataElement, nil
		}

		return 0, fmt.Errorf("%w: query item %s of type %s is not supported", ErrIllegalQuery, d, obj.ItemType)

	case StaticDimension:
		if !obj.SupportsLevel(level) {
			return 0, fmt.Errorf("%w: %s is not available at %s level", ErrIllegalQuery, obj, level)
		}

		switch level {
		case DimensionIdentifierTypeEnrollment:
			return KindEnrollmentStatic, nil
		case DimensionIdentifierTypeEvent:
			return KindEventStatic, nil
		}

		return KindTrackedEntityStatic, nil
	}

	return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, d.Dimension.Object())
}

// QueryBuilder produces the fragments for the dimension kinds it owns.
type QueryBuilder interface {
	// Kinds lists the dimension kinds routed to the builder.
	Kinds() []BuilderKind
	// AlwaysRun builders are invoked even when nothing is routed to them.
	AlwaysRun() bool
	Build(
		qc *QueryContext,
		headers, dimensions []*DimensionIdentifier[*DimensionParam],
		sorting []*SortingParam,
	) (*RenderableSQLQuery, error)
}

// Registry routes dimensions to the builder owning their kind.
type Registry struct {
	builders []QueryBuilder
	owners   map[BuilderKind]int
}

// NewRegistry checks that every kind is owned by exactly one builder and that
// exactly one builder always runs.
func NewRegistry(builders ...QueryBuilder) (*Registry, error) {
	owners := make(map[BuilderKind]int, len(allBuilderKinds))
	alwaysRun := 0
	for i, b := range builders {
		if b.AlwaysRun() {
			alwaysRun++
		}

		for _, kind := range b.Kinds() {
			if other, ok := owners[kind]; ok {
				return nil, fmt.Errorf("%w: %s claimed by builders %d and %d", ErrRegistry, kind, other, i)
			}
			owners[kind] = i
		}
	}

	for _, kind := range allBuilderKinds {
		if _, ok := owners[kind]; !ok {
			return nil, fmt.Errorf("%w: no builder for %s", ErrRegistry, kind)
		}
	}

	if alwaysRun != 1 {
		return nil, fmt.Errorf("%w: %d builders always run, want 1", ErrRegistry, alwaysRun)
	}

	return &Registry{builders: builders, owners: owners}, nil
}

type builderInput struct {
	headers    []*DimensionIdentifier[*DimensionParam]
	dimensions []*DimensionIdentifier[*DimensionParam]
	sorting    []*SortingParam
}

func (in *builderInput) empty() bool {
	return len(in.headers) == 0 && len(in.dimensions) == 0 && len(in.sorting) == 0
}

// route buckets every header, dimension and sort key by owning builder.
func (r *Registry) route(
	headers, dimensions []*DimensionIdentifier[*DimensionParam], sorting []*SortingParam,
) ([]*builderInput, error) {
	inputs := make([]*builderInput, len(r.builders))
	for i := range inputs {
		inputs[i] = &builderInput{}
	}

	owner := func(d *DimensionIdentifier[*DimensionParam]) (*builderInput, error) {
		kind, err := Classify(d)
		if err != nil {
			return nil, err
		}
		return inputs[r.owners[kind]], nil
	}

	for _, h := range headers {
		in, err := owner(h)
		if err != nil {
			return nil, err
		}
		in.headers = append(in.headers, h)
	}

	for _, d := range dimensions {
		in, err := owner(d)
		if err != nil {
			return nil, err
		}
		in.dimensions = append(in.dimensions, d)
	}

	for _, s := range sorting {
		if s == nil {
			return nil, fmt.Errorf("%w: empty sorting param", ErrIllegalQuery)
		}
		in, err := owner(s.OrderBy)
		if err != nil {
			return nil, err
		}
		in.sorting = append(in.sorting, s)
	}

	return inputs, nil
}

// Build invokes, in registration order, every builder that received input or
// always runs and merges their fragments.
func (r *Registry) Build(
	qc *QueryContext,
	headers, dimensions []*DimensionIdentifier[*DimensionParam],
	sorting []*SortingParam,
) (*RenderableSQLQuery, error) {
	inputs, err := r.route(headers, dimensions, sorting)
	if err != nil {
		return nil, err
	}

	query := &RenderableSQLQuery{}
	for i, b := range r.builders {
		in := inputs[i]
		if in.empty() && !b.AlwaysRun() {
			continue
		}

		part, err := b.Build(qc, in.headers, in.dimensions, in.sorting)
		if err != nil {
			return nil, err
		}
		query = query.Merge(part)
	}

	return query, nil
}
