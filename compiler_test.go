package teianalytics

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testTable = "analytics_te_neenwmsyuep AS t_1"

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()

	c, err := NewCompiler(WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	return c
}

func TestCompiler_Render(t *testing.T) {
	t.Parallel()

	weightSQL := `(SELECT ev."UXz7xuGCEhU" FROM (` + rankedEventsDesc + `) AS ev ` +
		"WHERE ev.enrollment = (SELECT en.enrollment FROM (" + rankedEnrollmentsAsc + ") AS en " +
		"WHERE en.trackedentity = t_1.trackedentity AND en.rn = ?) AND ev.rn = ?)"
	weightArgs := []any{testStage, scheduledEventStatus, testProgram, uint32(1), uint32(1)}

	tt := []struct {
		name   string
		params func(t *testing.T) *QueryParams
		sql    string
		args   []any
	}{
		{
			name: "attribute filter, second page",
			params: func(t *testing.T) *QueryParams {
				return &QueryParams{
					Dimensions: []*DimensionIdentifier[*DimensionParam]{
						testDimension(t, "x", testParam(t, testFirstName, DimensionParamTypeDimension, "EQ:John")),
					},
					Paging: Paging{Page: 2, PageSize: 10},
				}
			},
			sql: `SELECT t_1.trackedentity AS "trackedentity", t_1."w75KJ2mc4zz" AS "w75KJ2mc4zz" ` +
				"FROM " + testTable + ` WHERE t_1."w75KJ2mc4zz" = ? ` +
				"ORDER BY t_1.trackedentity ASC LIMIT 10 OFFSET 10",
			args: []any{"John"},
		},
		{
			name: "data element of the latest event in the first enrollment",
			params: func(t *testing.T) *QueryParams {
				d := testDimension(t, testProgram+"[1]."+testStage+".x",
					testParam(t, testWeight, DimensionParamTypeDimension, "GT:70"))
				return &QueryParams{
					Dimensions: []*DimensionIdentifier[*DimensionParam]{d},
					Sorting:    []*SortingParam{{Index: 0, Direction: SortDesc, OrderBy: d}},
				}
			},
			sql: `SELECT t_1.trackedentity AS "trackedentity", ` +
				weightSQL + ` AS "IpHINAT79UW[1].A03MvHHogjR.UXz7xuGCEhU" ` +
				"FROM " + testTable + " WHERE EXISTS (SELECT 1 FROM (" + rankedEnrollmentsAsc + ") AS en " +
				"WHERE en.trackedentity = t_1.trackedentity AND en.rn = ? AND " +
				"EXISTS (SELECT 1 FROM (" + rankedEventsDesc + ") AS ev " +
				`WHERE ev.enrollment = en.enrollment AND ev.rn = ? AND ev."UXz7xuGCEhU" > ?)) ` +
				"ORDER BY " + weightSQL + " DESC, t_1.trackedentity ASC",
			args: append(append(append([]any{}, weightArgs...),
				testProgram, uint32(1), testStage, scheduledEventStatus, uint32(1), float64(70)),
				weightArgs...),
		},
		{
			name: "alternatives of one dimension are or'ed",
			params: func(t *testing.T) *QueryParams {
				name := testDimension(t, "x", testParam(t, testFirstName, DimensionParamTypeFilter, "EQ:John"))
				name.GroupID = "g1"
				status := testDimension(t, testProgram+".x",
					testParam(t, StaticProgramStatus, DimensionParamTypeFilter, "EQ:ACTIVE"))
				status.GroupID = "g1"
				period := testDimension(t, "x",
					testParam(t, &DimensionalObject{UID: "pe", Type: ObjectTypePeriod}, DimensionParamTypeFilter, "2023"))
				period.GroupID = "g2"

				return &QueryParams{Dimensions: []*DimensionIdentifier[*DimensionParam]{period, status, name}}
			},
			sql: `SELECT t_1.trackedentity AS "trackedentity" FROM ` + testTable + " " +
				`WHERE ((t_1."w75KJ2mc4zz" = ? OR EXISTS (SELECT 1 FROM (` + rankedEnrollmentsDesc + ") AS en " +
				"WHERE en.trackedentity = t_1.trackedentity AND en.rn = ? AND en.enrollmentstatus = ?)) " +
				"AND (t_1.created >= ? AND t_1.created < ?)) " +
				"ORDER BY t_1.trackedentity ASC",
			args: []any{"John", testProgram, uint32(1), "ACTIVE", "2023-01-01", "2024-01-01"},
		},
		{
			name: "org unit descendants",
			params: func(t *testing.T) *QueryParams {
				return &QueryParams{
					Dimensions: []*DimensionIdentifier[*DimensionParam]{
						testDimension(t, "x", testParam(t,
							&DimensionalObject{UID: "ou", Type: ObjectTypeOrgUnit}, DimensionParamTypeFilter, "ImspTQPwCqd")),
					},
					Paging: Paging{Page: 1, PageSize: 50},
				}
			},
			sql: `SELECT t_1.trackedentity AS "trackedentity" FROM ` + testTable + " " +
				`WHERE (t_1.oupath || '/') LIKE ? ESCAPE '\' ORDER BY t_1.trackedentity ASC LIMIT 50`,
			args: []any{"%/ImspTQPwCqd/%"},
		},
		{
			name: "explicit headers replace dimensions",
			params: func(t *testing.T) *QueryParams {
				return &QueryParams{
					Headers: []*DimensionIdentifier[*DimensionParam]{
						testDimension(t, "x", testParam(t, StaticTrackedEntity, DimensionParamTypeHeader)),
						testDimension(t, "x", testParam(t, StaticOrgUnitName, DimensionParamTypeHeader)),
					},
					Dimensions: []*DimensionIdentifier[*DimensionParam]{
						testDimension(t, "x", testParam(t, testFirstName, DimensionParamTypeDimension)),
					},
				}
			},
			sql: `SELECT t_1.trackedentity AS "trackedentity", t_1.registrationouname AS "ouname" ` +
				"FROM " + testTable + " ORDER BY t_1.trackedentity ASC",
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newTestCompiler(t)
			qc := testContext()
			params := tc.params(t)

			query, err := c.Compile(qc, params)
			require.NoError(t, err)

			sql, args, err := c.Render(qc, query, params.Paging)
			require.NoError(t, err)
			require.Equal(t, tc.sql, sql)
			require.Equal(t, tc.args, args)
		})
	}
}

func TestCompiler_RenderDollar(t *testing.T) {
	t.Parallel()

	c := newTestCompiler(t)
	qc := testContext()
	qc.Placeholder = sq.Dollar

	params := &QueryParams{
		Dimensions: []*DimensionIdentifier[*DimensionParam]{
			testDimension(t, testProgram+".x", testParam(t, StaticIncidentDate, DimensionParamTypeFilter, "GE:2024-01-01")),
		},
	}

	query, err := c.Compile(qc, params)
	require.NoError(t, err)

	sql, args, err := c.Render(qc, query, Paging{Page: 3, PageSize: 5})
	require.NoError(t, err)
	require.Equal(t, `SELECT t_1.trackedentity AS "trackedentity" FROM `+testTable+" "+
		"WHERE EXISTS (SELECT 1 FROM (SELECT *, row_number() OVER (PARTITION BY trackedentity ORDER BY enrollmentdate DESC) AS rn "+
		"FROM analytics_te_enrollments_neenwmsyuep WHERE program = $1) AS en "+
		"WHERE en.trackedentity = t_1.trackedentity AND en.rn = $2 AND en.incidentdate >= $3) "+
		"ORDER BY t_1.trackedentity ASC LIMIT 5 OFFSET 10", sql)
	require.Equal(t, []any{testProgram, uint32(1), "2024-01-01"}, args)
}

func TestCompiler_RenderCount(t *testing.T) {
	t.Parallel()

	c := newTestCompiler(t)
	qc := testContext()

	query, err := c.Compile(qc, &QueryParams{
		Dimensions: []*DimensionIdentifier[*DimensionParam]{
			testDimension(t, "x", testParam(t, testFirstName, DimensionParamTypeDimension, "EQ:John")),
		},
	})
	require.NoError(t, err)

	sql, args, err := c.RenderCount(qc, query)
	require.NoError(t, err)
	require.Equal(t, "SELECT count(*) AS total FROM "+testTable+` WHERE t_1."w75KJ2mc4zz" = ?`, sql)
	require.Equal(t, []any{"John"}, args)

	sql, args, err = c.RenderCount(qc, &RenderableSQLQuery{})
	require.NoError(t, err)
	require.Equal(t, "SELECT count(*) AS total FROM "+testTable, sql)
	require.Empty(t, args)
}

func TestCompiler_CompileErrors(t *testing.T) {
	t.Parallel()

	c := newTestCompiler(t)

	_, err := c.Compile(nil, &QueryParams{})
	require.ErrorIs(t, err, ErrIllegalQuery)

	_, err = c.Compile(testContext(), nil)
	require.ErrorIs(t, err, ErrIllegalQuery)

	qc := testContext()
	qc.TrackedEntityType = "tet; DROP TABLE x"
	_, err = c.Compile(qc, &QueryParams{})
	require.ErrorIs(t, err, ErrIllegalQuery)

	bad := &QueryItem{UID: `x" OR 1=1 --`, ValueType: ValueTypeText, ItemType: ObjectTypeAttribute}
	_, err = c.Compile(testContext(), &QueryParams{
		Dimensions: []*DimensionIdentifier[*DimensionParam]{testDimension(t, "x", testParam(t, bad, DimensionParamTypeDimension))},
	})
	require.ErrorIs(t, err, ErrIllegalQuery)

	_, err = c.Compile(testContext(), &QueryParams{
		Dimensions: []*DimensionIdentifier[*DimensionParam]{
			testDimension(t, testProgram+".x", testParam(t, testWeight, DimensionParamTypeDimension)),
		},
	})
	require.ErrorIs(t, err, ErrIllegalQuery)

	_, err = c.Compile(testContext(), &QueryParams{
		Dimensions: []*DimensionIdentifier[*DimensionParam]{
			testDimension(t, testProgram+"."+testStage+".eventstatus",
				testParam(t, StaticEventStatus, DimensionParamTypeFilter, "IN:ACTIVE;schedule")),
		},
	})
	require.ErrorIs(t, err, ErrIllegalQuery)
}

func TestNewCompiler_InvalidBuilders(t *testing.T) {
	t.Parallel()

	_, err := NewCompiler(WithBuilders(NewTrackedEntityBuilder()))
	require.ErrorIs(t, err, ErrRegistry)
}
