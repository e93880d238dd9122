//go:build integration
// +build integration

// Package suite seeds the analytics tables of one tracked entity type and
// checks compiled requests against them on any supported database.
package suite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"github.com/vench/teianalytics"
)

const (
	TrackedEntityType = "nEenWmSyUEp"
	Program           = "IpHINAT79UW"
	Stage             = "A03MvHHogjR"
	Weight            = "UXz7xuGCEhU"
	FirstName         = "w75KJ2mc4zz"

	catalogFile = "../../testdata/catalog.yaml"
	dateLayout  = "2006-01-02"
)

// RelativePeriodDate anchors the relative periods of every case.
var RelativePeriodDate = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

// Dialect describes the column types and placeholders of a database.
type Dialect struct {
	Text        string
	Key         string
	Date        string
	Number      string
	TableSuffix string
	Placeholder sq.PlaceholderFormat
	// TimeDates binds dates as time.Time instead of yyyy-MM-dd strings.
	TimeDates bool
	// ImplicitLikeEscape is passed on to the query context.
	ImplicitLikeEscape bool
}

var (
	// SQLite keeps dates as text, the driver would turn DATE columns into time.Time.
	SQLite = Dialect{Text: "TEXT", Key: "TEXT", Date: "TEXT", Number: "REAL", Placeholder: sq.Question}
	Postgres = Dialect{
		Text: "TEXT", Key: "TEXT NOT NULL", Date: "DATE", Number: "DOUBLE PRECISION", Placeholder: sq.Dollar,
	}
	ClickHouse = Dialect{
		Text: "Nullable(String)", Key: "String", Date: "Date", Number: "Nullable(Float64)",
		TableSuffix: "ENGINE = MergeTree() ORDER BY tuple()", Placeholder: sq.Question, TimeDates: true,
		ImplicitLikeEscape: true,
	}
)

type TrackedEntity struct {
	ID        string
	FirstName any
	Created   string
	OrgUnit   string
	Path      string
	Parent    string
}

type Enrollment struct {
	TrackedEntity string
	ID            string
	Date          string
	Status        string
}

type Event struct {
	Enrollment string
	ID         string
	Date       string
	Status     string
	Weight     any
}

var TrackedEntities = []TrackedEntity{
	{ID: "tei_a", FirstName: "John", Created: "2023-02-01", OrgUnit: "a1", Path: "/ImspTQPwCqd/O6uvpzGd5pu/a1", Parent: "O6uvpzGd5pu"},
	{ID: "tei_b", FirstName: "Jane", Created: "2024-03-01", OrgUnit: "b1", Path: "/ImspTQPwCqd/fdc6uOvgoji/b1", Parent: "fdc6uOvgoji"},
	{ID: "tei_c", FirstName: "Joe", Created: "2024-04-01", OrgUnit: "c1", Path: "/at6UHUQatSo/c1", Parent: "at6UHUQatSo"},
	{ID: "tei_d", FirstName: nil, Created: "2024-05-01", OrgUnit: "d1", Path: "/at6UHUQatSo/d1", Parent: "at6UHUQatSo"},
}

var Enrollments = []Enrollment{
	{TrackedEntity: "tei_a", ID: "en_a1", Date: "2022-01-10", Status: "COMPLETED"},
	{TrackedEntity: "tei_a", ID: "en_a2", Date: "2023-06-01", Status: "ACTIVE"},
	{TrackedEntity: "tei_b", ID: "en_b1", Date: "2024-03-05", Status: "ACTIVE"},
}

var Events = []Event{
	{Enrollment: "en_a1", ID: "ev_a1_1", Date: "2022-01-11", Status: "COMPLETED", Weight: 3000.0},
	{Enrollment: "en_a2", ID: "ev_a2_1", Date: "2023-06-02", Status: "COMPLETED", Weight: 3500.0},
	{Enrollment: "en_a2", ID: "ev_a2_2", Date: "2023-07-01", Status: "ACTIVE", Weight: 4000.0},
	{Enrollment: "en_a2", ID: "ev_a2_3", Date: "2023-08-01", Status: "SCHEDULE", Weight: nil},
	{Enrollment: "en_b1", ID: "ev_b1_1", Date: "2024-03-06", Status: "COMPLETED", Weight: 2800.0},
}

func (d Dialect) date(s string) any {
	if !d.TimeDates {
		return s
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}

	return t
}

func (d Dialect) createTable(ctx context.Context, db *sql.DB, table string, columns [][2]string) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("failed to drop table `%s`: %w", table, err)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, c[0]+" "+c[1])
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s) %s", table, strings.Join(defs, ", "), d.TableSuffix)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table `%s`: %w", table, err)
	}

	return nil
}

func (d Dialect) insert(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) error {
	query, _, err := sq.Insert(table).
		Columns(columns...).
		Values(make([]any, len(columns))...).
		PlaceholderFormat(d.Placeholder).
		ToSql()
	if err != nil {
		return err
	}

	scope, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := scope.PrepareContext(ctx, query)
	if err != nil {
		_ = scope.Rollback()
		return fmt.Errorf("failed to prepare insert into `%s`: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			_ = scope.Rollback()
			return fmt.Errorf("failed to execute query insert `%s`: %w", table, err)
		}
	}

	if err = scope.Commit(); err != nil {
		return fmt.Errorf("failed to commit scope `%s`: %w", table, err)
	}

	return nil
}

// Seed recreates and fills the tracked entity, enrollment and event tables.
func Seed(ctx context.Context, db *sql.DB, d Dialect) error {
	tet := strings.ToLower(TrackedEntityType)
	teiTable := "analytics_te_" + tet
	enrollmentTable := "analytics_te_enrollments_" + tet
	eventTable := "analytics_te_events_" + tet

	teiColumns := [][2]string{
		{"trackedentity", d.Key}, {"created", d.Date}, {"lastupdated", d.Date},
		{"registrationou", d.Text}, {"oupath", d.Text}, {"ouparent", d.Text},
		{`"` + FirstName + `"`, d.Text},
	}
	enrollmentColumns := [][2]string{
		{"trackedentity", d.Key}, {"enrollment", d.Key}, {"program", d.Key},
		{"enrollmentdate", d.Date}, {"incidentdate", d.Date}, {"enrollmentstatus", d.Text},
		{"ou", d.Text}, {"oupath", d.Text}, {"ouparent", d.Text},
	}
	eventColumns := [][2]string{
		{"trackedentity", d.Key}, {"enrollment", d.Key}, {"event", d.Key}, {"programstage", d.Key},
		{"occurreddate", d.Date}, {"eventstatus", d.Text},
		{"ou", d.Text}, {"oupath", d.Text}, {"ouparent", d.Text},
		{`"` + Weight + `"`, d.Number},
	}

	for table, columns := range map[string][][2]string{
		teiTable:        teiColumns,
		enrollmentTable: enrollmentColumns,
		eventTable:      eventColumns,
	} {
		if err := d.createTable(ctx, db, table, columns); err != nil {
			return err
		}
	}

	units := make(map[string]TrackedEntity, len(TrackedEntities))
	teiRows := make([][]any, 0, len(TrackedEntities))
	for _, te := range TrackedEntities {
		units[te.ID] = te
		teiRows = append(teiRows, []any{
			te.ID, d.date(te.Created), d.date(te.Created), te.OrgUnit, te.Path, te.Parent, te.FirstName,
		})
	}

	enrollments := make(map[string]Enrollment, len(Enrollments))
	enrollmentRows := make([][]any, 0, len(Enrollments))
	for _, en := range Enrollments {
		enrollments[en.ID] = en
		te := units[en.TrackedEntity]
		enrollmentRows = append(enrollmentRows, []any{
			en.TrackedEntity, en.ID, Program, d.date(en.Date), d.date(en.Date), en.Status,
			te.OrgUnit, te.Path, te.Parent,
		})
	}

	eventRows := make([][]any, 0, len(Events))
	for _, ev := range Events {
		en := enrollments[ev.Enrollment]
		te := units[en.TrackedEntity]
		eventRows = append(eventRows, []any{
			en.TrackedEntity, ev.Enrollment, ev.ID, Stage, d.date(ev.Date), ev.Status,
			te.OrgUnit, te.Path, te.Parent, ev.Weight,
		})
	}

	for _, t := range []struct {
		table   string
		columns [][2]string
		rows    [][]any
	}{
		{table: teiTable, columns: teiColumns, rows: teiRows},
		{table: enrollmentTable, columns: enrollmentColumns, rows: enrollmentRows},
		{table: eventTable, columns: eventColumns, rows: eventRows},
	} {
		names := make([]string, 0, len(t.columns))
		for _, c := range t.columns {
			names = append(names, c[0])
		}

		if err := d.insert(ctx, db, t.table, names, t.rows); err != nil {
			return err
		}
	}

	return nil
}

// Case is a request with the rows it must return.
type Case struct {
	Name    string
	Request teianalytics.Request
	Rows    [][]any
}

// TrackedEntityCases only touch the tracked entity table.
func TrackedEntityCases() []Case {
	return []Case{
		{
			Name: "attribute in list",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{FirstName + ":IN:John;Joe"},
			},
			Rows: [][]any{{"tei_a", "John"}, {"tei_c", "Joe"}},
		},
		{
			Name: "not equal keeps missing values",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{FirstName + ":NEQ:John"},
			},
			Rows: [][]any{{"tei_b", "Jane"}, {"tei_c", "Joe"}, {"tei_d", nil}},
		},
		{
			Name: "org unit descendants",
			Request: teianalytics.Request{
				Headers:   []string{FirstName},
				Dimension: []string{"ou:ImspTQPwCqd"},
			},
			Rows: [][]any{{"tei_a", "John"}, {"tei_b", "Jane"}},
		},
		{
			Name: "org unit matches whole path segments",
			Request: teianalytics.Request{
				Headers:   []string{FirstName},
				Dimension: []string{"ou:ImspTQPwCq"},
			},
			Rows: [][]any{},
		},
		{
			Name: "org unit descendants include the unit",
			Request: teianalytics.Request{
				Headers:   []string{FirstName},
				Dimension: []string{"ou:a1"},
			},
			Rows: [][]any{{"tei_a", "John"}},
		},
		{
			Name: "like wildcards are literal",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{FirstName + ":LIKE:%"},
			},
			Rows: [][]any{},
		},
		{
			Name: "org unit children",
			Request: teianalytics.Request{
				Headers:   []string{FirstName},
				Dimension: []string{"ou:at6UHUQatSo"},
				OuMode:    "CHILDREN",
			},
			Rows: [][]any{{"tei_c", "Joe"}, {"tei_d", nil}},
		},
		{
			Name: "created last year",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Created: []string{"LAST_YEAR"},
			},
			Rows: [][]any{{"tei_a", "John"}},
		},
		{
			Name: "second page",
			Request: teianalytics.Request{
				Headers:  []string{FirstName},
				Page:     2,
				PageSize: 2,
			},
			Rows: [][]any{{"tei_c", "Joe"}, {"tei_d", nil}},
		},
		{
			Name: "sorted by attribute",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{FirstName + ":SW:J"},
				Desc:    []string{FirstName},
			},
			Rows: [][]any{{"tei_a", "John"}, {"tei_c", "Joe"}, {"tei_b", "Jane"}},
		},
	}
}

// EnrollmentCases address enrollments and events through correlated subqueries.
func EnrollmentCases() []Case {
	weight := Program + "." + Stage + "." + Weight

	return []Case{
		{
			Name: "latest event of the latest enrollment",
			Request: teianalytics.Request{
				Headers: []string{FirstName, weight},
				Filter:  []string{FirstName + ":IN:John;Jane"},
			},
			Rows: [][]any{{"tei_a", "John", 4000.0}, {"tei_b", "Jane", 2800.0}},
		},
		{
			Name: "first event of the first enrollment",
			Request: teianalytics.Request{
				Headers: []string{Program + "[1]." + Stage + "[1]." + Weight},
				Filter:  []string{FirstName + ":IN:John;Jane"},
			},
			Rows: [][]any{{"tei_a", 3000.0}, {"tei_b", 2800.0}},
		},
		{
			Name: "data element filter",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{weight + ":GT:3000"},
			},
			Rows: [][]any{{"tei_a", "John"}},
		},
		{
			Name: "previous enrollment status",
			Request: teianalytics.Request{
				Headers:       []string{FirstName},
				ProgramStatus: []string{Program + "[-1].COMPLETED"},
			},
			Rows: [][]any{{"tei_a", "John"}},
		},
		{
			Name: "event status skips scheduled events",
			Request: teianalytics.Request{
				Headers:     []string{FirstName},
				EventStatus: []string{Program + "." + Stage + ".ACTIVE"},
			},
			Rows: [][]any{{"tei_a", "John"}},
		},
		{
			Name: "enrollment date",
			Request: teianalytics.Request{
				Headers:        []string{FirstName},
				EnrollmentDate: []string{Program + ".2024"},
			},
			Rows: [][]any{{"tei_b", "Jane"}},
		},
		{
			Name: "alternatives across levels",
			Request: teianalytics.Request{
				Headers: []string{FirstName},
				Filter:  []string{FirstName + ":EQ:Joe_OR_" + weight + ":LT:3000"},
			},
			Rows: [][]any{{"tei_b", "Jane"}, {"tei_c", "Joe"}},
		},
		{
			Name: "sorted by data element",
			Request: teianalytics.Request{
				Headers:       []string{FirstName},
				ProgramStatus: []string{Program + ".ACTIVE"},
				Asc:           []string{weight},
			},
			Rows: [][]any{{"tei_b", "Jane"}, {"tei_a", "John"}},
		},
	}
}

// Run parses, compiles and executes every case through repo.
func Run(t *testing.T, repo teianalytics.ReadRepository, d Dialect, cases []Case) {
	t.Helper()

	catalog, err := teianalytics.LoadCatalogFile(catalogFile)
	require.NoError(t, err)
	parser := teianalytics.NewRequestParser(catalog)

	for i := range cases {
		tc := cases[i]

		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			req := tc.Request
			req.TrackedEntityType = TrackedEntityType
			req.RelativePeriodDate = RelativePeriodDate

			qc, params, err := parser.Parse(&req)
			require.NoError(t, err)
			qc.Placeholder = d.Placeholder
			qc.ImplicitLikeEscape = d.ImplicitLikeEscape

			grid, err := repo.Grid(context.Background(), qc, params)
			require.NoError(t, err)
			require.Equal(t, tc.Rows, grid.Rows)

			if req.PageSize == 0 {
				total, err := repo.Total(context.Background(), qc, params)
				require.NoError(t, err)
				require.Equal(t, uint64(len(tc.Rows)), total)
			}
		})
	}
}
