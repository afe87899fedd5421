// Package datetime assembles a timestamp from a date column and an optional
// time column described by strftime-style formats.
package datetime

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

const (
	// DefaultTime is used when a format has no time column
	DefaultTime = "00:00:00"
	// DefaultTimeFormat parses DefaultTime and is the time format when none is configured
	DefaultTimeFormat = "%T"
	// DefaultDelimiter joins the date and time parts
	DefaultDelimiter = " "
)

// Layout describes how a timestamp is split across columns.
type Layout struct {
	DateFormat string
	// TimeFormat defaults to DefaultTimeFormat.
	TimeFormat string
	// Delimiter joins date and time in the composite value and format.
	Delimiter string
}

// NewLayout builds a layout, substituting defaults for an empty time format
// and a nil delimiter.
func NewLayout(dateFormat, timeFormat string, delimiter *string) Layout {
	l := Layout{
		DateFormat: dateFormat,
		TimeFormat: timeFormat,
		Delimiter:  DefaultDelimiter,
	}
	if l.TimeFormat == "" {
		l.TimeFormat = DefaultTimeFormat
	}
	if delimiter != nil {
		l.Delimiter = *delimiter
	}
	return l
}

// Error is returned when a composite value does not match its format.
type Error struct {
	Value  string
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to parse %q with format %q: %v", e.Value, e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Compose returns the composite value and format for a date and time pair.
// An empty clock selects midnight parsed with DefaultTimeFormat.
func (l Layout) Compose(date, clock string) (value, format string) {
	timeFormat := l.TimeFormat
	if clock == "" {
		clock = DefaultTime
		timeFormat = DefaultTimeFormat
	}
	return date + l.Delimiter + clock, l.DateFormat + l.Delimiter + timeFormat
}

// Parse assembles and parses a timestamp. The result is in UTC.
func (l Layout) Parse(date, clock string) (time.Time, error) {
	value, format := l.Compose(date, clock)
	t, err := strftime.Parse(format, value)
	if err != nil {
		return time.Time{}, &Error{Value: value, Format: format, Err: err}
	}
	return t.UTC(), nil
}

// FormatDate renders the date part of t.
func (l Layout) FormatDate(t time.Time) string {
	return strftime.Format(l.DateFormat, t.UTC())
}

// FormatTime renders the time part of t.
func (l Layout) FormatTime(t time.Time) string {
	return strftime.Format(l.TimeFormat, t.UTC())
}

// ValidateFormat reports whether a strftime-style format can be used for
// both parsing and rendering.
func ValidateFormat(format string) error {
	if _, err := strftime.Layout(format); err != nil {
		return fmt.Errorf("invalid date/time format %q: %w", format, err)
	}
	return nil
}
