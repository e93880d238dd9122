package teianalytics

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ValueType is the metadata value type of a dimension.
type ValueType string

const (
	ValueTypeText             ValueType = "TEXT"
	ValueTypeLongText         ValueType = "LONG_TEXT"
	ValueTypeNumber           ValueType = "NUMBER"
	ValueTypeInteger          ValueType = "INTEGER"
	ValueTypeIntegerPositive  ValueType = "INTEGER_POSITIVE"
	ValueTypeIntegerZeroOrPos ValueType = "INTEGER_ZERO_OR_POSITIVE"
	ValueTypePercentage       ValueType = "PERCENTAGE"
	ValueTypeBoolean          ValueType = "BOOLEAN"
	ValueTypeTrueOnly         ValueType = "TRUE_ONLY"
	ValueTypeDate             ValueType = "DATE"
	ValueTypeDateTime         ValueType = "DATETIME"
	ValueTypeOrgUnit          ValueType = "ORGANISATION_UNIT"
	ValueTypeAge              ValueType = "AGE"
)

func (v ValueType) IsNumeric() bool {
	switch v {
	case ValueTypeNumber, ValueTypeInteger, ValueTypeIntegerPositive,
		ValueTypeIntegerZeroOrPos, ValueTypePercentage:
		return true
	}

	return false
}

func (v ValueType) IsDate() bool {
	return v == ValueTypeDate || v == ValueTypeDateTime || v == ValueTypeAge
}

func (v ValueType) IsBoolean() bool {
	return v == ValueTypeBoolean || v == ValueTypeTrueOnly
}

// DimensionObjectType tells what kind of metadata object backs a dimension.
type DimensionObjectType string

const (
	ObjectTypeTrackedEntity DimensionObjectType = "TRACKED_ENTITY"
	ObjectTypeOrgUnit       DimensionObjectType = "ORGANISATION_UNIT"
	ObjectTypeStatic        DimensionObjectType = "STATIC"
	ObjectTypePeriod        DimensionObjectType = "PERIOD"
	ObjectTypeDataElement   DimensionObjectType = "DATA_ELEMENT"
	ObjectTypeAttribute     DimensionObjectType = "TRACKED_ENTITY_ATTRIBUTE"
	ObjectTypeProgramStatus DimensionObjectType = "PROGRAM_STATUS"
	ObjectTypeEventStatus   DimensionObjectType = "EVENT_STATUS"
)

// IDScheme is the identifier scheme requested for metadata in the response.
type IDScheme string

const (
	IDSchemeUID  IDScheme = "UID"
	IDSchemeCode IDScheme = "CODE"
	IDSchemeName IDScheme = "NAME"
)

// DimensionParamType is the role a dimension plays in the request.
type DimensionParamType int

const (
	DimensionParamTypeDimension DimensionParamType = iota
	DimensionParamTypeFilter
	DimensionParamTypeHeader
	DimensionParamTypeDateFilter
	DimensionParamTypeSort
)

func (t DimensionParamType) String() string {
	switch t {
	case DimensionParamTypeDimension:
		return "DIMENSION"
	case DimensionParamTypeFilter:
		return "FILTER"
	case DimensionParamTypeHeader:
		return "HEADER"
	case DimensionParamTypeDateFilter:
		return "DATE_FILTER"
	case DimensionParamTypeSort:
		return "SORT"
	}

	return "UNKNOWN"
}

// OrgUnitMode selects which part of the org unit hierarchy an ou filter covers.
type OrgUnitMode string

const (
	OrgUnitModeSelected    OrgUnitMode = "SELECTED"
	OrgUnitModeChildren    OrgUnitMode = "CHILDREN"
	OrgUnitModeDescendants OrgUnitMode = "DESCENDANTS"
)

// QueryContext carries the per-request settings the builders need.
type QueryContext struct {
	// TrackedEntityType is the uid suffix of the analytics tables.
	TrackedEntityType string
	// RelativePeriodDate anchors relative periods such as LAST_YEAR.
	RelativePeriodDate time.Time
	OrgUnitMode        OrgUnitMode
	// Placeholder is the bind variable format of the target database.
	Placeholder sq.PlaceholderFormat
	// ImplicitLikeEscape is set for engines that escape LIKE patterns with
	// backslash and reject an ESCAPE clause, such as ClickHouse.
	ImplicitLikeEscape bool
}

// SortingParam is one requested ORDER BY key with its position in the request.
type SortingParam struct {
	Index     int
	Direction SortDirection
	OrderBy   *DimensionIdentifier[*DimensionParam]
}

// QueryParams are the parsed inputs of one compilation.
type QueryParams struct {
	Headers    []*DimensionIdentifier[*DimensionParam]
	Dimensions []*DimensionIdentifier[*DimensionParam]
	Sorting    []*SortingParam
	Paging     Paging
}

// Paging limits the rows of a query, Page is 1-based.
type Paging struct {
	Page     int
	PageSize int
}

func (p Paging) limit() uint64 {
	if p.PageSize <= 0 {
		return 0
	}

	return uint64(p.PageSize)
}

func (p Paging) offset() uint64 {
	if p.PageSize <= 0 || p.Page <= 1 {
		return 0
	}

	return uint64((p.Page - 1) * p.PageSize)
}
