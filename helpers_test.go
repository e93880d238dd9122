package teianalytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testTrackedEntityType = "nEenWmSyUEp"
	testProgram           = "IpHINAT79UW"
	testStage             = "A03MvHHogjR"
	testDataElement       = "UXz7xuGCEhU"
	testAttribute         = "w75KJ2mc4zz"

	rankedEnrollmentsAsc = "SELECT *, row_number() OVER (PARTITION BY trackedentity ORDER BY enrollmentdate ASC) AS rn " +
		"FROM analytics_te_enrollments_neenwmsyuep WHERE program = ?"
	rankedEnrollmentsDesc = "SELECT *, row_number() OVER (PARTITION BY trackedentity ORDER BY enrollmentdate DESC) AS rn " +
		"FROM analytics_te_enrollments_neenwmsyuep WHERE program = ?"
	rankedEventsDesc = "SELECT *, row_number() OVER (PARTITION BY enrollment ORDER BY occurreddate DESC) AS rn " +
		"FROM analytics_te_events_neenwmsyuep WHERE programstage = ? AND eventstatus <> ?"
)

var (
	testWeight = &QueryItem{
		UID: testDataElement, Name: "Weight", ValueType: ValueTypeNumber, ItemType: ObjectTypeDataElement,
	}
	testFirstName = &QueryItem{
		UID: testAttribute, Name: "First name", ValueType: ValueTypeText, ItemType: ObjectTypeAttribute,
	}
)

func testContext() *QueryContext {
	return &QueryContext{
		TrackedEntityType:  testTrackedEntityType,
		RelativePeriodDate: date(2024, 5, 15),
		OrgUnitMode:        OrgUnitModeDescendants,
	}
}

func testParam(t *testing.T, candidate any, role DimensionParamType, items ...string) *DimensionParam {
	t.Helper()

	p, err := NewDimensionParam(candidate, role, IDSchemeName, items)
	require.NoError(t, err)

	return p
}

// testDimension addresses param with the program and stage segments of raw,
// the last segment of raw is ignored.
func testDimension(t *testing.T, raw string, param *DimensionParam) *DimensionIdentifier[*DimensionParam] {
	t.Helper()

	id, err := ParseDimensionIdentifier(raw)
	require.NoError(t, err)

	return WithDimension(id, param)
}
