package teianalytics

import (
	"fmt"
	"strings"
)

// StaticDimension is a fixed, non-metadata analytics column.
type StaticDimension int

const (
	StaticTrackedEntity StaticDimension = iota + 1
	StaticOrgUnit
	StaticOrgUnitName
	StaticOrgUnitCode
	StaticCreated
	StaticLastUpdated
	StaticEnrollmentDate
	StaticIncidentDate
	StaticOccurredDate
	StaticScheduledDate
	StaticProgramStatus
	StaticEventStatus
)

type staticDimensionInfo struct {
	name       string
	headerName string
	column     string
	teiColumn  string
	valueType  ValueType
	objectType DimensionObjectType
	levels     []DimensionIdentifierType
}

var (
	allLevels       = []DimensionIdentifierType{DimensionIdentifierTypeTEI, DimensionIdentifierTypeEnrollment, DimensionIdentifierTypeEvent}
	enrollmentLevel = []DimensionIdentifierType{DimensionIdentifierTypeEnrollment}
	eventLevel      = []DimensionIdentifierType{DimensionIdentifierTypeEvent}
)

var staticDimensions = map[StaticDimension]staticDimensionInfo{
	StaticTrackedEntity: {
		name: "TRACKED_ENTITY", headerName: "Tracked entity", column: "trackedentity",
		valueType: ValueTypeText, objectType: ObjectTypeTrackedEntity,
		levels: []DimensionIdentifierType{DimensionIdentifierTypeTEI},
	},
	StaticOrgUnit: {
		name: "OU", headerName: "Organisation unit", column: "ou", teiColumn: "registrationou",
		valueType: ValueTypeOrgUnit, objectType: ObjectTypeOrgUnit, levels: allLevels,
	},
	StaticOrgUnitName: {
		name: "OUNAME", headerName: "Organisation unit name", column: "ouname", teiColumn: "registrationouname",
		valueType: ValueTypeText, objectType: ObjectTypeOrgUnit, levels: allLevels,
	},
	StaticOrgUnitCode: {
		name: "OUCODE", headerName: "Organisation unit code", column: "oucode", teiColumn: "registrationoucode",
		valueType: ValueTypeText, objectType: ObjectTypeOrgUnit, levels: allLevels,
	},
	StaticCreated: {
		name: "CREATED", headerName: "Created", column: "created",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: allLevels,
	},
	StaticLastUpdated: {
		name: "LAST_UPDATED", headerName: "Last updated", column: "lastupdated",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: allLevels,
	},
	StaticEnrollmentDate: {
		name: "ENROLLMENT_DATE", headerName: "Enrollment date", column: "enrollmentdate",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: enrollmentLevel,
	},
	StaticIncidentDate: {
		name: "INCIDENT_DATE", headerName: "Incident date", column: "incidentdate",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: enrollmentLevel,
	},
	StaticOccurredDate: {
		name: "OCCURRED_DATE", headerName: "Occurred date", column: "occurreddate",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: eventLevel,
	},
	StaticScheduledDate: {
		name: "SCHEDULED_DATE", headerName: "Scheduled date", column: "scheduleddate",
		valueType: ValueTypeDateTime, objectType: ObjectTypeStatic, levels: eventLevel,
	},
	StaticProgramStatus: {
		name: "PROGRAM_STATUS", headerName: "Program status", column: "enrollmentstatus",
		valueType: ValueTypeText, objectType: ObjectTypeProgramStatus, levels: enrollmentLevel,
	},
	StaticEventStatus: {
		name: "EVENT_STATUS", headerName: "Event status", column: "eventstatus",
		valueType: ValueTypeText, objectType: ObjectTypeEventStatus, levels: eventLevel,
	},
}

// staticLookup is keyed by lower-cased column name, enum name and normalized name.
var staticLookup = buildStaticLookup()

func buildStaticLookup() map[string]StaticDimension {
	lookup := make(map[string]StaticDimension, len(staticDimensions)*3)
	for dim, info := range staticDimensions {
		keys := map[string]struct{}{
			strings.ToLower(info.column): {},
			strings.ToLower(info.name):   {},
			dim.NormalizedName():         {},
		}
		for key := range keys {
			if other, ok := lookup[key]; ok && other != dim {
				panic(fmt.Sprintf("static dimension key %q is ambiguous: %s, %s", key, other, dim))
			}
			lookup[key] = dim
		}
	}

	return lookup
}

// LookupStaticDimension finds a static dimension by column name, enum name or
// normalized name, ignoring case.
func LookupStaticDimension(name string) (StaticDimension, bool) {
	dim, ok := staticLookup[strings.ToLower(strings.TrimSpace(name))]
	return dim, ok
}

func (s StaticDimension) info() staticDimensionInfo {
	return staticDimensions[s]
}

func (s StaticDimension) String() string {
	return s.info().name
}

// NormalizedName is the enum name lower-cased without underscores, as used on the wire.
func (s StaticDimension) NormalizedName() string {
	return strings.ToLower(strings.ReplaceAll(s.info().name, "_", ""))
}

func (s StaticDimension) HeaderName() string {
	return s.info().headerName
}

func (s StaticDimension) ColumnName() string {
	return s.info().column
}

// ColumnAt returns the column holding the dimension at the given level.
func (s StaticDimension) ColumnAt(level DimensionIdentifierType) string {
	info := s.info()
	if level == DimensionIdentifierTypeTEI && info.teiColumn != "" {
		return info.teiColumn
	}

	return info.column
}

func (s StaticDimension) ValueType() ValueType {
	return s.info().valueType
}

func (s StaticDimension) ObjectType() DimensionObjectType {
	return s.info().objectType
}

// SupportsLevel reports whether the dimension exists at the given level.
func (s StaticDimension) SupportsLevel(level DimensionIdentifierType) bool {
	for _, l := range s.info().levels {
		if l == level {
			return true
		}
	}

	return false
}
