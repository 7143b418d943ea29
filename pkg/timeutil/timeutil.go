// Package timeutil provides the clock and date formatting used on receipts.
// Receipts carry the operator's local calendar date, so every helper works
// in a configured location rather than UTC.
package timeutil

import (
	"time"
)

// DefaultDateLayout renders dates as month/day/year without zero padding,
// the way an en-US browser prints a local date.
const DefaultDateLayout = "1/2/2006"

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// LoadLocation resolves an IANA zone name, falling back to the host's
// local zone when the name is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// DateFormatter renders receipt dates in a fixed location and layout.
type DateFormatter struct {
	Location *time.Location
	Layout   string
	Clock    Clock
}

// NewDateFormatter builds a formatter; empty arguments take defaults.
func NewDateFormatter(loc *time.Location, layout string, clock Clock) DateFormatter {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	if clock == nil {
		clock = SystemClock
	}
	return DateFormatter{Location: loc, Layout: layout, Clock: clock}
}

// Today returns the current local date as text.
func (f DateFormatter) Today() string {
	return f.Format(f.Clock())
}

// Format renders t as a local date.
func (f DateFormatter) Format(t time.Time) string {
	return t.In(f.Location).Format(f.Layout)
}
