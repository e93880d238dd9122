package teianalytics

import (
	"errors"
	"fmt"
	"strings"
)

const (
	operatorSeparator = ":"
	valueSeparator    = ";"
	dateFilterPrefix  = string(OpEq) + operatorSeparator
)

// ErrUnsupportedType is returned when a candidate is neither a dimensional
// object, a query item nor a static dimension.
var ErrUnsupportedType = errors.New("unsupported dimension type")

// DimensionParamObject is the closed set of things a DimensionParam can wrap:
// *DimensionalObject, *QueryItem or StaticDimension.
type DimensionParamObject interface {
	isDimensionParamObject()
}

// DimensionalObject is a dimension whose items are metadata, such as periods
// or organisation units.
type DimensionalObject struct {
	UID  string
	Name string
	Type DimensionObjectType
	// TimeField is the date a period dimension applies to, zero for the level default.
	TimeField TimeField
}

// QueryItem is a data element or tracked entity attribute.
type QueryItem struct {
	UID       string
	Code      string
	Name      string
	ValueType ValueType
	ItemType  DimensionObjectType
}

func (*DimensionalObject) isDimensionParamObject() {}
func (*QueryItem) isDimensionParamObject()         {}
func (StaticDimension) isDimensionParamObject()    {}

// DimensionParamItem is one filter: an optional operator applied to its values.
type DimensionParamItem struct {
	Operator QueryOperator
	Values   []string
}

// HasOperator reports whether the item restricts with an explicit operator.
func (i *DimensionParamItem) HasOperator() bool {
	return i.Operator != ""
}

// NewDimensionParamItems builds the filter items of a dimension. Whatever the
// number of raw tokens, a single item is returned: the operator is only read
// from the first token and shared by the rest.
func NewDimensionParamItems(raw []string) ([]*DimensionParamItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	item := &DimensionParamItem{}
	first := raw[0]
	prefix := ""
	if idx := strings.Index(first, operatorSeparator); idx >= 0 {
		op, err := ParseQueryOperator(first[:idx])
		if err != nil {
			return nil, err
		}

		item.Operator = op
		prefix = first[:idx+1]
		first = first[idx+1:]
	}

	item.Values = append(item.Values, splitValues(item.Operator, first)...)
	for _, token := range raw[1:] {
		if prefix != "" && len(token) >= len(prefix) && strings.EqualFold(token[:len(prefix)], prefix) {
			token = token[len(prefix):]
		}
		item.Values = append(item.Values, splitValues(item.Operator, token)...)
	}

	return []*DimensionParamItem{item}, nil
}

func splitValues(op QueryOperator, token string) []string {
	if op.IsList() {
		return strings.Split(token, valueSeparator)
	}

	return []string{token}
}

// DimensionParam is a classified, queryable dimension.
type DimensionParam struct {
	object   DimensionParamObject
	Type     DimensionParamType
	IDScheme IDScheme
	Items    []*DimensionParamItem
}

// NewDimensionParam classifies candidate and parses its raw filter items.
// Candidates are tried as dimensional object, then query item, then static
// dimension (a StaticDimension or a name to look up).
func NewDimensionParam(
	candidate any, role DimensionParamType, idScheme IDScheme, rawItems []string,
) (*DimensionParam, error) {
	if role == DimensionParamTypeDateFilter {
		rewritten := make([]string, 0, len(rawItems))
		for _, item := range rawItems {
			rewritten = append(rewritten, dateFilterPrefix+item)
		}
		rawItems = rewritten
	}

	object, err := classifyCandidate(candidate)
	if err != nil {
		return nil, err
	}

	items, err := NewDimensionParamItems(rawItems)
	if err != nil {
		return nil, err
	}

	return &DimensionParam{
		object:   object,
		Type:     role,
		IDScheme: idScheme,
		Items:    items,
	}, nil
}

func classifyCandidate(candidate any) (DimensionParamObject, error) {
	switch c := candidate.(type) {
	case *DimensionalObject:
		if c != nil {
			return c, nil
		}
	case *QueryItem:
		if c != nil {
			return c, nil
		}
	case StaticDimension:
		if _, ok := staticDimensions[c]; ok {
			return c, nil
		}
	case string:
		if dim, ok := LookupStaticDimension(c); ok {
			return dim, nil
		}

		return nil, fmt.Errorf("%w: %T %q", ErrUnsupportedType, candidate, c)
	case StringUID:
		if dim, ok := LookupStaticDimension(string(c)); ok {
			return dim, nil
		}

		return nil, fmt.Errorf("%w: %T %q", ErrUnsupportedType, candidate, c)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, candidate)
}

// Object returns the wrapped variant.
func (p *DimensionParam) Object() DimensionParamObject {
	return p.object
}

func (p *DimensionParam) IsDimensionalObject() bool {
	_, ok := p.object.(*DimensionalObject)
	return ok
}

func (p *DimensionParam) IsQueryItem() bool {
	_, ok := p.object.(*QueryItem)
	return ok
}

func (p *DimensionParam) IsStaticDimension() bool {
	_, ok := p.object.(StaticDimension)
	return ok
}

// DimensionalObject returns the dimensional object variant, nil otherwise.
func (p *DimensionParam) DimensionalObject() *DimensionalObject {
	d, _ := p.object.(*DimensionalObject)
	return d
}

// QueryItem returns the query item variant, nil otherwise.
func (p *DimensionParam) QueryItem() *QueryItem {
	q, _ := p.object.(*QueryItem)
	return q
}

// StaticDimension returns the static dimension variant.
func (p *DimensionParam) StaticDimension() (StaticDimension, bool) {
	s, ok := p.object.(StaticDimension)
	return s, ok
}

func (p *DimensionParam) UID() string {
	switch o := p.object.(type) {
	case *DimensionalObject:
		return o.UID
	case *QueryItem:
		return o.UID
	case StaticDimension:
		return o.NormalizedName()
	}

	return ""
}

func (p *DimensionParam) Name() string {
	switch o := p.object.(type) {
	case *DimensionalObject:
		return o.Name
	case *QueryItem:
		return o.Name
	case StaticDimension:
		return o.HeaderName()
	}

	return ""
}

// HeaderName names the param in grid headers according to its IDScheme.
// Items without a code fall back to their uid, NAME is the default.
func (p *DimensionParam) HeaderName() string {
	switch p.IDScheme {
	case IDSchemeUID:
		return p.UID()
	case IDSchemeCode:
		switch o := p.object.(type) {
		case *QueryItem:
			if o.Code != "" {
				return o.Code
			}
		case StaticDimension:
			return o.String()
		}
		return p.UID()
	}

	return p.Name()
}

func (p *DimensionParam) ValueType() ValueType {
	switch o := p.object.(type) {
	case *DimensionalObject:
		if o.Type == ObjectTypePeriod {
			return ValueTypeDate
		}
		return ValueTypeText
	case *QueryItem:
		return o.ValueType
	case StaticDimension:
		return o.ValueType()
	}

	return ValueTypeText
}

// IsPeriodDimension reports whether the param is a period dimensional object.
func (p *DimensionParam) IsPeriodDimension() bool {
	d := p.DimensionalObject()
	return d != nil && d.Type == ObjectTypePeriod
}

// IsFilter reports whether the param restricts rows without being a column.
func (p *DimensionParam) IsFilter() bool {
	return p.Type == DimensionParamTypeFilter || p.Type == DimensionParamTypeDateFilter
}

func (p *DimensionParam) String() string {
	return p.UID()
}
