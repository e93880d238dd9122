package teianalytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orSeparator     = "_OR_"
	userOrgUnit     = "USER_ORGUNIT"
	periodDimension = "pe"
	orgUnitDim      = "ou"
)

var (
	programStatuses = []string{"ACTIVE", "COMPLETED", "CANCELLED"}
	eventStatuses   = []string{"ACTIVE", "COMPLETED", "OVERDUE", "SKIPPED", "VISITED"}
)

// Request holds the raw query parameters of a tracked entity analytics call.
type Request struct {
	TrackedEntityType string `validate:"required"`
	// Program restricts the programs identifiers may refer to, any program of the type when empty.
	Program   []string
	Dimension []string
	Filter    []string
	Headers   []string
	Asc       []string
	Desc      []string

	EnrollmentDate []string
	IncidentDate   []string
	EventDate      []string
	ScheduledDate  []string
	LastUpdated    []string
	Created        []string

	ProgramStatus []string
	EventStatus   []string

	OuMode       string `validate:"omitempty,oneof=SELECTED CHILDREN DESCENDANTS"`
	UserOrgUnits []string

	Page     int `validate:"min=0"`
	PageSize int `validate:"min=0"`

	RelativePeriodDate time.Time
	IDScheme           IDScheme `validate:"omitempty,oneof=UID CODE NAME"`
}

// RequestParser resolves a Request against the metadata catalog.
type RequestParser struct {
	catalog    *Catalog
	now        func() time.Time
	newGroupID func() string
}

func NewRequestParser(catalog *Catalog) *RequestParser {
	return &RequestParser{
		catalog:    catalog,
		now:        time.Now,
		newGroupID: uuid.NewString,
	}
}

type requestScope struct {
	req *Request
	tet *TrackedEntityTypeMeta
}

// Parse builds the query context and params of req.
func (p *RequestParser) Parse(req *Request) (*QueryContext, *QueryParams, error) {
	if err := validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrIllegalQuery, err)
	}

	tet, ok := p.catalog.TrackedEntityType(req.TrackedEntityType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown tracked entity type %s", ErrIllegalQuery, req.TrackedEntityType)
	}

	scope := &requestScope{req: req, tet: tet}

	qc := &QueryContext{
		TrackedEntityType:  tet.UID,
		RelativePeriodDate: req.RelativePeriodDate,
		OrgUnitMode:        OrgUnitMode(req.OuMode),
	}
	if qc.RelativePeriodDate.IsZero() {
		qc.RelativePeriodDate = p.now()
	}
	if qc.OrgUnitMode == "" {
		qc.OrgUnitMode = OrgUnitModeDescendants
	}

	params := &QueryParams{
		Paging: Paging{Page: max(req.Page, 1), PageSize: req.PageSize},
	}

	for _, group := range []struct {
		values []string
		role   DimensionParamType
	}{
		{values: req.Dimension, role: DimensionParamTypeDimension},
		{values: req.Filter, role: DimensionParamTypeFilter},
	} {
		for _, value := range group.values {
			dims, err := p.parseDimensionValue(scope, value, group.role)
			if err != nil {
				return nil, nil, err
			}
			params.Dimensions = append(params.Dimensions, dims...)
		}
	}

	dateFilters, err := p.parseDateFilters(scope)
	if err != nil {
		return nil, nil, err
	}
	params.Dimensions = append(params.Dimensions, dateFilters...)

	statuses, err := p.parseStatuses(scope)
	if err != nil {
		return nil, nil, err
	}
	params.Dimensions = append(params.Dimensions, statuses...)

	for _, h := range req.Headers {
		d, err := p.resolve(scope, h, DimensionParamTypeHeader, nil, "")
		if err != nil {
			return nil, nil, err
		}
		params.Headers = append(params.Headers, d)
	}

	for _, sorting := range []struct {
		values    []string
		direction SortDirection
	}{
		{values: req.Asc, direction: SortAsc},
		{values: req.Desc, direction: SortDesc},
	} {
		for _, value := range sorting.values {
			d, err := p.resolve(scope, value, DimensionParamTypeSort, nil, "")
			if err != nil {
				return nil, nil, err
			}
			params.Sorting = append(params.Sorting, &SortingParam{
				Index:     len(params.Sorting),
				Direction: sorting.direction,
				OrderBy:   d,
			})
		}
	}

	return qc, params, nil
}

// parseDimensionValue parses id[:items] alternatives joined by _OR_, which
// share one group so that their conditions are OR'ed.
func (p *RequestParser) parseDimensionValue(
	scope *requestScope, value string, role DimensionParamType,
) ([]*DimensionIdentifier[*DimensionParam], error) {
	group := p.newGroupID()

	parts := strings.Split(value, orSeparator)
	dims := make([]*DimensionIdentifier[*DimensionParam], 0, len(parts))
	for _, part := range parts {
		rawID, rawItems, _ := strings.Cut(part, operatorSeparator)

		var items []string
		if rawItems != "" {
			items = strings.Split(rawItems, valueSeparator)
		}

		d, err := p.resolve(scope, rawID, role, items, group)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}

	return dims, nil
}

func (p *RequestParser) parseDateFilters(scope *requestScope) ([]*DimensionIdentifier[*DimensionParam], error) {
	fields := []struct {
		values []string
		field  TimeField
	}{
		{values: scope.req.EnrollmentDate, field: TimeFieldEnrollmentDate},
		{values: scope.req.IncidentDate, field: TimeFieldIncidentDate},
		{values: scope.req.EventDate, field: TimeFieldOccurredDate},
		{values: scope.req.ScheduledDate, field: TimeFieldScheduledDate},
		{values: scope.req.LastUpdated, field: TimeFieldLastUpdated},
		{values: scope.req.Created, field: TimeFieldCreated},
	}

	dims := make([]*DimensionIdentifier[*DimensionParam], 0)
	for _, f := range fields {
		for _, value := range f.values {
			// the last segment lists the periods
			id, err := ParseDimensionIdentifier(value)
			if err != nil {
				return nil, err
			}
			if err := p.checkScope(scope, id); err != nil {
				return nil, err
			}

			period := &DimensionalObject{
				UID:       periodDimension,
				Name:      string(f.field),
				Type:      ObjectTypePeriod,
				TimeField: f.field,
			}
			param, err := NewDimensionParam(period, DimensionParamTypeDateFilter, scope.req.IDScheme,
				strings.Split(string(id.Dimension), valueSeparator))
			if err != nil {
				return nil, err
			}

			d := WithDimension(id, param)
			if _, ok := f.field.StaticDimension(d.Type()); !ok {
				return nil, fmt.Errorf("%w: %s is not available at %s level", ErrIllegalQuery, f.field, d.Type())
			}
			d.GroupID = d.Key() + ":" + string(f.field)
			dims = append(dims, d)
		}
	}

	return dims, nil
}

func (p *RequestParser) parseStatuses(scope *requestScope) ([]*DimensionIdentifier[*DimensionParam], error) {
	kinds := []struct {
		values  []string
		static  StaticDimension
		allowed []string
	}{
		{values: scope.req.ProgramStatus, static: StaticProgramStatus, allowed: programStatuses},
		{values: scope.req.EventStatus, static: StaticEventStatus, allowed: eventStatuses},
	}

	dims := make([]*DimensionIdentifier[*DimensionParam], 0)
	for _, k := range kinds {
		for _, value := range k.values {
			id, err := ParseDimensionIdentifier(value)
			if err != nil {
				return nil, err
			}
			if err := p.checkScope(scope, id); err != nil {
				return nil, err
			}

			status := strings.ToUpper(string(id.Dimension))
			if !slices.Contains(k.allowed, status) {
				return nil, fmt.Errorf("%w: unknown %s %q", ErrIllegalQuery, k.static, status)
			}

			param, err := NewDimensionParam(k.static, DimensionParamTypeFilter, scope.req.IDScheme,
				[]string{string(OpEq) + operatorSeparator + status})
			if err != nil {
				return nil, err
			}

			d := WithDimension(id, param)
			d.GroupID = d.Key()
			dims = append(dims, d)
		}
	}

	return dims, nil
}

// resolve parses rawID and classifies its dimension against the catalog.
func (p *RequestParser) resolve(
	scope *requestScope, rawID string, role DimensionParamType, items []string, groupID string,
) (*DimensionIdentifier[*DimensionParam], error) {
	id, err := ParseDimensionIdentifier(rawID)
	if err != nil {
		return nil, err
	}

	if err := p.checkScope(scope, id); err != nil {
		return nil, err
	}

	candidate, err := p.candidate(scope, id)
	if err != nil {
		return nil, err
	}

	if obj, ok := candidate.(*DimensionalObject); ok && obj.Type == ObjectTypeOrgUnit {
		items, err = expandUserOrgUnits(items, scope.req.UserOrgUnits)
		if err != nil {
			return nil, err
		}
	}

	param, err := NewDimensionParam(candidate, role, scope.req.IDScheme, items)
	if err != nil {
		return nil, err
	}

	d := WithDimension(id, param)
	d.GroupID = groupID

	// attribute values are stored once per tracked entity
	if item := param.QueryItem(); item != nil && item.ItemType == ObjectTypeAttribute && !d.HasProgramStage() {
		d.Alias = d.Key()
		d.Program = ElementWithOffset[string]{}
	}

	return d, nil
}

func (p *RequestParser) checkScope(scope *requestScope, id *DimensionIdentifier[StringUID]) error {
	programUID, ok := id.Program.Element()
	if !ok {
		return nil
	}

	program, ok := p.catalog.Program(programUID)
	if !ok || program.TrackedEntityType != scope.tet.UID {
		return fmt.Errorf("%w: program %s is not a program of %s", ErrIllegalQuery, programUID, scope.tet.UID)
	}

	if len(scope.req.Program) > 0 && !slices.Contains(scope.req.Program, programUID) {
		return fmt.Errorf("%w: program %s is not requested", ErrIllegalQuery, programUID)
	}

	if stageUID, ok := id.ProgramStage.Element(); ok {
		if _, ok := program.Stage(stageUID); !ok {
			return fmt.Errorf("%w: stage %s does not belong to program %s", ErrIllegalQuery, stageUID, programUID)
		}
	}

	return nil
}

// candidate finds what the last segment of id names: a dimensional object,
// a catalog item, or otherwise a static dimension name.
func (p *RequestParser) candidate(scope *requestScope, id *DimensionIdentifier[StringUID]) (any, error) {
	dim := string(id.Dimension)

	switch dim {
	case periodDimension:
		return &DimensionalObject{UID: periodDimension, Name: "Period", Type: ObjectTypePeriod}, nil
	case orgUnitDim:
		return &DimensionalObject{UID: orgUnitDim, Name: StaticOrgUnit.HeaderName(), Type: ObjectTypeOrgUnit}, nil
	}

	if stageUID, ok := id.ProgramStage.Element(); ok {
		programUID, _ := id.Program.Element()
		program, _ := p.catalog.Program(programUID)
		stage, _ := program.Stage(stageUID)
		if de, ok := stage.DataElement(dim); ok {
			return de.queryItem(ObjectTypeDataElement), nil
		}
	}

	if attribute, ok := scope.tet.Attribute(dim); ok {
		return attribute.queryItem(ObjectTypeAttribute), nil
	}

	if p.catalog.IsDataElement(dim) {
		return nil, fmt.Errorf("%w: data element %s is not fully qualified", ErrIllegalQuery, id)
	}

	return dim, nil
}

func expandUserOrgUnits(items, userOrgUnits []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !strings.EqualFold(item, userOrgUnit) {
			out = append(out, item)
			continue
		}

		if len(userOrgUnits) == 0 {
			return nil, fmt.Errorf("%w: %s requested without user org units", ErrIllegalQuery, userOrgUnit)
		}
		out = append(out, userOrgUnits...)
	}

	return out, nil
}
