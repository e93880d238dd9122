//go:build integration
// +build integration

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vench/teianalytics"
	"github.com/vench/teianalytics/integration/suite"
)

var dataSourceName string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "teianalytics")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}

	dataSourceName = filepath.Join(dir, "analytics.db")
	if err = initSQLiteDB(context.Background()); err != nil {
		log.Fatalf("failed to init DB sqlite: %v", err)
	}

	exitVal := m.Run()

	os.RemoveAll(dir)

	os.Exit(exitVal)
}

func initSQLiteDB(ctx context.Context) error {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer db.Close()

	return suite.Seed(ctx, db, suite.SQLite)
}

func openRepository(t *testing.T) *teianalytics.SQLRepository {
	t.Helper()

	conn, err := sql.Open("sqlite3", dataSourceName)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, conn.Close())
	})

	compiler, err := teianalytics.NewCompiler(teianalytics.WithLogger(zap.NewExample()))
	require.NoError(t, err)

	repo := teianalytics.NewSQLRepository(conn, compiler)
	require.NoError(t, repo.Ping(context.Background()))

	return repo
}

func TestSQLite_SQLRepository(t *testing.T) {
	t.Parallel()

	repo := openRepository(t)

	t.Run("tracked entity", func(t *testing.T) {
		suite.Run(t, repo, suite.SQLite, suite.TrackedEntityCases())
	})
	t.Run("enrollment", func(t *testing.T) {
		suite.Run(t, repo, suite.SQLite, suite.EnrollmentCases())
	})
}

// The row picked by the compiled window query agrees with SelectByOffset on
// the seeded rows for every offset.
func TestSQLite_OffsetAgreement(t *testing.T) {
	t.Parallel()

	repo := openRepository(t)
	parser := teianalytics.NewRequestParser(mustCatalog(t))

	latestFirst := func(a, b suite.Enrollment) int { return strings.Compare(b.Date, a.Date) }
	latestEventFirst := func(a, b suite.Event) int { return strings.Compare(b.Date, a.Date) }

	for _, offset := range []int{-2, -1, 0, 1, 2, 3} {
		t.Run(fmt.Sprintf("enrollment %d", offset), func(t *testing.T) {
			header := fmt.Sprintf("%s[%d].enrollmentdate", suite.Program, offset)
			column := grid(t, parser, repo, header).Column(header)

			expected := make([]any, 0, len(suite.TrackedEntities))
			for _, te := range suite.TrackedEntities {
				enrollments := filter(suite.Enrollments, func(en suite.Enrollment) bool { return en.TrackedEntity == te.ID })
				en, ok := teianalytics.SelectByOffset(enrollments, latestFirst, offset)
				if !ok {
					expected = append(expected, nil)
					continue
				}
				expected = append(expected, en.Date)
			}

			require.Equal(t, expected, column)
		})

		t.Run(fmt.Sprintf("event %d", offset), func(t *testing.T) {
			header := fmt.Sprintf("%s.%s[%d].%s", suite.Program, suite.Stage, offset, suite.Weight)
			column := grid(t, parser, repo, header).Column(header)

			expected := make([]any, 0, len(suite.TrackedEntities))
			for _, te := range suite.TrackedEntities {
				enrollments := filter(suite.Enrollments, func(en suite.Enrollment) bool { return en.TrackedEntity == te.ID })
				en, ok := teianalytics.SelectByOffset(enrollments, latestFirst, 0)
				if !ok {
					expected = append(expected, nil)
					continue
				}

				events := filter(suite.Events, func(ev suite.Event) bool {
					return ev.Enrollment == en.ID && ev.Status != "SCHEDULE"
				})
				ev, ok := teianalytics.SelectByOffset(events, latestEventFirst, offset)
				if !ok {
					expected = append(expected, nil)
					continue
				}
				expected = append(expected, ev.Weight)
			}

			require.Equal(t, expected, column)
		})
	}
}

// Scheduled events are not ranked, so filtering on them is rejected instead
// of returning nothing.
func TestSQLite_ScheduledEventStatus(t *testing.T) {
	t.Parallel()

	repo := openRepository(t)
	parser := teianalytics.NewRequestParser(mustCatalog(t))
	stage := suite.Program + "." + suite.Stage

	_, _, err := parser.Parse(&teianalytics.Request{
		TrackedEntityType: suite.TrackedEntityType,
		EventStatus:       []string{stage + ".SCHEDULE"},
	})
	require.ErrorIs(t, err, teianalytics.ErrIllegalQuery)

	qc, params, err := parser.Parse(&teianalytics.Request{
		TrackedEntityType: suite.TrackedEntityType,
		Filter:            []string{stage + ".eventstatus:EQ:SCHEDULE"},
	})
	require.NoError(t, err)

	_, err = repo.Grid(context.Background(), qc, params)
	require.ErrorIs(t, err, teianalytics.ErrIllegalQuery)

	qc, params, err = parser.Parse(&teianalytics.Request{
		TrackedEntityType: suite.TrackedEntityType,
		Headers:           []string{suite.FirstName},
		Filter:            []string{stage + ".eventstatus:EQ:COMPLETED"},
	})
	require.NoError(t, err)

	g, err := repo.Grid(context.Background(), qc, params)
	require.NoError(t, err)
	require.Equal(t, [][]any{{"tei_b", "Jane"}}, g.Rows)
}

func mustCatalog(t *testing.T) *teianalytics.Catalog {
	t.Helper()

	catalog, err := teianalytics.LoadCatalogFile("../../testdata/catalog.yaml")
	require.NoError(t, err)

	return catalog
}

func grid(
	t *testing.T, parser *teianalytics.RequestParser, repo *teianalytics.SQLRepository, header string,
) *teianalytics.Grid {
	t.Helper()

	qc, params, err := parser.Parse(&teianalytics.Request{
		TrackedEntityType: suite.TrackedEntityType,
		Headers:           []string{header},
	})
	require.NoError(t, err)

	g, err := repo.Grid(context.Background(), qc, params)
	require.NoError(t, err)

	return g
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}

	return out
}
