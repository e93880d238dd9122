package main

import (
	"github.com/spf13/pflag"

	"github.com/vench/teianalytics"
)

func bindRequestFlags(flags *pflag.FlagSet, req *teianalytics.Request) {
	flags.StringVar(&req.TrackedEntityType, "tet", "", "tracked entity type uid")
	flags.Var(listValue{&req.Program}, "program", "restrict identifiers to the program")
	flags.Var(listValue{&req.Dimension}, "dimension", "dimension, alternatives joined by _OR_")
	flags.Var(listValue{&req.Filter}, "filter", "filter, alternatives joined by _OR_")
	flags.Var(listValue{&req.Headers}, "header", "output column")
	flags.Var(listValue{&req.Asc}, "asc", "sort ascending by dimension")
	flags.Var(listValue{&req.Desc}, "desc", "sort descending by dimension")

	flags.Var(listValue{&req.EnrollmentDate}, "enrollment-date", "[program.]periods")
	flags.Var(listValue{&req.IncidentDate}, "incident-date", "[program.]periods")
	flags.Var(listValue{&req.EventDate}, "event-date", "program.stage.periods")
	flags.Var(listValue{&req.ScheduledDate}, "scheduled-date", "program.stage.periods")
	flags.Var(listValue{&req.LastUpdated}, "last-updated", "[program[.stage].]periods")
	flags.Var(listValue{&req.Created}, "created", "[program[.stage].]periods")

	flags.Var(listValue{&req.ProgramStatus}, "program-status", "program.status")
	flags.Var(listValue{&req.ProgramStatus}, "enrollment-status", "alias of --program-status")
	flags.Var(listValue{&req.EventStatus}, "event-status", "program.stage.status")

	flags.StringVar(&req.OuMode, "ou-mode", "", "SELECTED|CHILDREN|DESCENDANTS")
	flags.StringSliceVar(&req.UserOrgUnits, "user-orgunit", nil, "org units USER_ORGUNIT expands to")
	flags.IntVar(&req.Page, "page", 1, "page, 1-based")
	flags.IntVar(&req.PageSize, "page-size", 0, "rows per page, 0 for the configured default")
	flags.Var((*idSchemeValue)(&req.IDScheme), "id-scheme", "UID|CODE|NAME")
	flags.Var((*dateValue)(&req.RelativePeriodDate), "relative-period-date", "anchor of relative periods, yyyy-MM-dd")
}
