package teianalytics

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	teiAlias        = "t_1"
	enrollmentAlias = "en"
	eventAlias      = "ev"
	rowNumberColumn = "rn"

	teiColumn        = "trackedentity"
	enrollmentColumn = "enrollment"

	// events planned but not yet happened never count as an occurrence
	scheduledEventStatus = "SCHEDULE"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	aliasPattern      = regexp.MustCompile(`^[A-Za-z0-9_.\[\]-]+$`)
)

func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func quoteIdentifier(s string) string {
	if !isValidIdentifier(s) {
		panic(fmt.Sprintf("invalid sql identifier %q", s))
	}

	return `"` + s + `"`
}

func quoteAlias(s string) string {
	if !aliasPattern.MatchString(s) {
		panic(fmt.Sprintf("invalid sql alias %q", s))
	}

	return `"` + s + `"`
}

func teiTable(tet string) string {
	return "analytics_te_" + tableSuffix(tet)
}

func enrollmentTable(tet string) string {
	return "analytics_te_enrollments_" + tableSuffix(tet)
}

func eventTable(tet string) string {
	return "analytics_te_events_" + tableSuffix(tet)
}

func tableSuffix(tet string) string {
	if !isValidIdentifier(tet) {
		panic(fmt.Sprintf("invalid tracked entity type %q", tet))
	}

	return strings.ToLower(tet)
}

func qualified(alias, column string) string {
	return alias + "." + column
}

// rankedEnrollments numbers the enrollments of each tracked entity in the program
// by enrollment date.
func rankedEnrollments(tet, program string, dir SortDirection) sq.SelectBuilder {
	return sq.Select("*").
		Column(fmt.Sprintf("row_number() OVER (PARTITION BY %s ORDER BY enrollmentdate %s) AS %s",
			teiColumn, dir, rowNumberColumn)).
		From(enrollmentTable(tet)).
		Where(sq.Eq{"program": program})
}

// rankedEvents numbers the events of each enrollment in the stage by occurred date.
func rankedEvents(tet, stage string, dir SortDirection) sq.SelectBuilder {
	return sq.Select("*").
		Column(fmt.Sprintf("row_number() OVER (PARTITION BY %s ORDER BY occurreddate %s) AS %s",
			enrollmentColumn, dir, rowNumberColumn)).
		From(eventTable(tet)).
		Where(sq.Eq{"programstage": stage}).
		Where(sq.NotEq{"eventstatus": scheduledEventStatus})
}

// nthEnrollment selects from the enrollment the program offset points at.
func nthEnrollment(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], columns ...string) sq.SelectBuilder {
	program, _ := d.Program.Element()
	offset := ResolveOffset(d.Program.Offset())

	return sq.Select(columns...).
		FromSelect(rankedEnrollments(qc.TrackedEntityType, program, offset.Direction), enrollmentAlias).
		Where(qualified(enrollmentAlias, teiColumn) + " = " + qualified(teiAlias, teiColumn)).
		Where(sq.Eq{qualified(enrollmentAlias, rowNumberColumn): offset.RowNumber})
}

// nthEvent selects from the event the stage offset points at, inside the
// enrollment the program offset points at.
func nthEvent(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], columns ...string) sq.SelectBuilder {
	stage, _ := d.ProgramStage.Element()
	offset := ResolveOffset(d.ProgramStage.Offset())

	return sq.Select(columns...).
		FromSelect(rankedEvents(qc.TrackedEntityType, stage, offset.Direction), eventAlias).
		Where(sq.Expr(qualified(eventAlias, enrollmentColumn)+" = (?)",
			nthEnrollment(qc, d, qualified(enrollmentAlias, enrollmentColumn)))).
		Where(sq.Eq{qualified(eventAlias, rowNumberColumn): offset.RowNumber})
}

// valueAtLevel returns the scalar expression reading column at the level of d.
// column is the bare column name, qualified here with the alias of the level.
func valueAtLevel(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string) Renderable {
	switch t := d.Type(); t {
	case DimensionIdentifierTypeTEI:
		return sq.Expr(qualified(teiAlias, column))
	case DimensionIdentifierTypeEnrollment:
		return sq.Expr("(?)", nthEnrollment(qc, d, qualified(enrollmentAlias, column)))
	case DimensionIdentifierTypeEvent:
		return sq.Expr("(?)", nthEvent(qc, d, qualified(eventAlias, column)))
	default:
		panic(fmt.Sprintf("unsupported dimension identifier type %s", t))
	}
}

// columnAtLevel qualifies column with the alias of the level of d, as seen
// from inside existsAtLevel.
func columnAtLevel(d *DimensionIdentifier[*DimensionParam], column string) string {
	switch t := d.Type(); t {
	case DimensionIdentifierTypeTEI:
		return qualified(teiAlias, column)
	case DimensionIdentifierTypeEnrollment:
		return qualified(enrollmentAlias, column)
	case DimensionIdentifierTypeEvent:
		return qualified(eventAlias, column)
	default:
		panic(fmt.Sprintf("unsupported dimension identifier type %s", t))
	}
}

// existsAtLevel restricts the tracked entity to those whose addressed
// enrollment or event satisfies cond. Tracked entity conditions are returned as is.
func existsAtLevel(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], cond Renderable) Renderable {
	switch t := d.Type(); t {
	case DimensionIdentifierTypeTEI:
		return cond
	case DimensionIdentifierTypeEnrollment:
		return enrollmentExists(qc, d, cond)
	case DimensionIdentifierTypeEvent:
		return enrollmentExists(qc, d, eventExists(qc, d, cond))
	default:
		panic(fmt.Sprintf("unsupported dimension identifier type %s", t))
	}
}

func enrollmentExists(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], cond Renderable) Renderable {
	return sq.Expr("EXISTS (?)", nthEnrollment(qc, d, "1").Where(cond))
}

func eventExists(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], cond Renderable) Renderable {
	stage, _ := d.ProgramStage.Element()
	offset := ResolveOffset(d.ProgramStage.Offset())

	return sq.Expr("EXISTS (?)", sq.Select("1").
		FromSelect(rankedEvents(qc.TrackedEntityType, stage, offset.Direction), eventAlias).
		Where(qualified(eventAlias, enrollmentColumn)+" = "+qualified(enrollmentAlias, enrollmentColumn)).
		Where(sq.Eq{qualified(eventAlias, rowNumberColumn): offset.RowNumber}).
		Where(cond))
}

// orderAtLevel is an ORDER BY key on column at the level of d.
func orderAtLevel(qc *QueryContext, d *DimensionIdentifier[*DimensionParam], column string, dir SortDirection) Renderable {
	return sq.Expr("? "+string(dir), valueAtLevel(qc, d, column))
}
