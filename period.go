package teianalytics

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	periodDateLayout     = "2006-01-02"
	periodRangeSeparator = "_"
)

// ErrInvalidPeriod is returned for a period id that is neither fixed nor relative.
var ErrInvalidPeriod = errors.New("invalid period")

// Period is a half-open [Start, End) date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls into the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// TimeField is the date column a period applies to.
type TimeField string

const (
	TimeFieldDefault        TimeField = ""
	TimeFieldEnrollmentDate TimeField = "ENROLLMENT_DATE"
	TimeFieldIncidentDate   TimeField = "INCIDENT_DATE"
	TimeFieldOccurredDate   TimeField = "OCCURRED_DATE"
	TimeFieldScheduledDate  TimeField = "SCHEDULED_DATE"
	TimeFieldLastUpdated    TimeField = "LAST_UPDATED"
	TimeFieldCreated        TimeField = "CREATED"
)

var timeFieldColumns = map[TimeField]StaticDimension{
	TimeFieldEnrollmentDate: StaticEnrollmentDate,
	TimeFieldIncidentDate:   StaticIncidentDate,
	TimeFieldOccurredDate:   StaticOccurredDate,
	TimeFieldScheduledDate:  StaticScheduledDate,
	TimeFieldLastUpdated:    StaticLastUpdated,
	TimeFieldCreated:        StaticCreated,
}

// StaticDimension returns the column a time field reads at the given level.
// The default field is created for tracked entities, the enrollment date for
// enrollments and the occurred date for events.
func (f TimeField) StaticDimension(level DimensionIdentifierType) (StaticDimension, bool) {
	if f == TimeFieldDefault {
		switch level {
		case DimensionIdentifierTypeEnrollment:
			return StaticEnrollmentDate, true
		case DimensionIdentifierTypeEvent:
			return StaticOccurredDate, true
		default:
			return StaticCreated, true
		}
	}

	dim, ok := timeFieldColumns[f]
	if !ok || !dim.SupportsLevel(level) {
		return 0, false
	}

	return dim, true
}

var (
	yearPattern    = regexp.MustCompile(`^\d{4}$`)
	monthPattern   = regexp.MustCompile(`^\d{6}$`)
	quarterPattern = regexp.MustCompile(`^(\d{4})Q([1-4])$`)
	dayPattern     = regexp.MustCompile(`^\d{8}$`)
)

type relativePeriod func(today time.Time) Period

var relativePeriods = map[string]relativePeriod{
	"TODAY": func(d time.Time) Period {
		return Period{Start: d, End: d.AddDate(0, 0, 1)}
	},
	"YESTERDAY": func(d time.Time) Period {
		return Period{Start: d.AddDate(0, 0, -1), End: d}
	},
	"THIS_WEEK": func(d time.Time) Period {
		w := weekStart(d)
		return Period{Start: w, End: w.AddDate(0, 0, 7)}
	},
	"LAST_WEEK": func(d time.Time) Period {
		w := weekStart(d)
		return Period{Start: w.AddDate(0, 0, -7), End: w}
	},
	"THIS_MONTH": func(d time.Time) Period {
		m := monthStart(d)
		return Period{Start: m, End: m.AddDate(0, 1, 0)}
	},
	"LAST_MONTH":     lastMonths(1),
	"LAST_3_MONTHS":  lastMonths(3),
	"LAST_12_MONTHS": lastMonths(12),
	"THIS_YEAR": func(d time.Time) Period {
		y := yearStart(d)
		return Period{Start: y, End: y.AddDate(1, 0, 0)}
	},
	"LAST_YEAR":     lastYears(1),
	"LAST_5_YEARS":  lastYears(5),
	"LAST_10_YEARS": lastYears(10),
}

func lastMonths(n int) relativePeriod {
	return func(d time.Time) Period {
		m := monthStart(d)
		return Period{Start: m.AddDate(0, -n, 0), End: m}
	}
}

func lastYears(n int) relativePeriod {
	return func(d time.Time) Period {
		y := yearStart(d)
		return Period{Start: y.AddDate(-n, 0, 0), End: y}
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weeks start on monday
func weekStart(d time.Time) time.Time {
	shift := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -shift)
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func yearStart(d time.Time) time.Time {
	return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod parses a fixed period (yyyy, yyyyMM, yyyyQn, yyyyMMdd, yyyy-MM-dd,
// yyyy-MM-dd_yyyy-MM-dd) or a relative one anchored at relativeTo.
func ParsePeriod(id string, relativeTo time.Time) (Period, error) {
	id = strings.TrimSpace(id)

	if rel, ok := relativePeriods[strings.ToUpper(id)]; ok {
		return rel(dayStart(relativeTo)), nil
	}

	switch {
	case yearPattern.MatchString(id):
		start, err := time.Parse("2006", id)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
		}
		return Period{Start: start, End: start.AddDate(1, 0, 0)}, nil

	case monthPattern.MatchString(id):
		start, err := time.Parse("200601", id)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
		}
		return Period{Start: start, End: start.AddDate(0, 1, 0)}, nil

	case quarterPattern.MatchString(id):
		m := quarterPattern.FindStringSubmatch(id)
		year, _ := strconv.Atoi(m[1])
		quarter, _ := strconv.Atoi(m[2])
		start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, 0)}, nil

	case dayPattern.MatchString(id):
		start, err := time.Parse("20060102", id)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
		}
		return Period{Start: start, End: start.AddDate(0, 0, 1)}, nil
	}

	if from, to, ok := strings.Cut(id, periodRangeSeparator); ok {
		start, err := time.Parse(periodDateLayout, from)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
		}
		end, err := time.Parse(periodDateLayout, to)
		if err != nil || end.Before(start) {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
		}
		return Period{Start: start, End: end.AddDate(0, 0, 1)}, nil
	}

	start, err := time.Parse(periodDateLayout, id)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
	}

	return Period{Start: start, End: start.AddDate(0, 0, 1)}, nil
}
