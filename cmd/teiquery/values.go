package main

import (
	"strings"
	"time"

	"github.com/vench/teianalytics"
)

const dateFormat = "2006-01-02"

type dateValue time.Time

func (d *dateValue) String() string {
	t := time.Time(*d)
	if t.IsZero() {
		return ""
	}

	return t.Format(dateFormat)
}

func (d *dateValue) Set(s string) error {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return err
	}

	*d = dateValue(t)

	return nil
}

func (d *dateValue) Type() string {
	return "date"
}

type idSchemeValue teianalytics.IDScheme

func (v *idSchemeValue) String() string {
	return string(*v)
}

func (v *idSchemeValue) Set(s string) error {
	*v = idSchemeValue(strings.ToUpper(s))
	return nil
}

func (v *idSchemeValue) Type() string {
	return "scheme"
}

// listValue appends comma separated values to a slice. Several flags may
// share one slice, each occurrence adds to it.
type listValue struct {
	values *[]string
}

func (v listValue) String() string {
	if v.values == nil {
		return ""
	}

	return strings.Join(*v.values, ",")
}

func (v listValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*v.values = append(*v.values, part)
		}
	}

	return nil
}

func (v listValue) Type() string {
	return "strings"
}
