package core

import (
	"fmt"
	"strings"
	"time"
)

// CalendarLayout is the string encoding of a transaction date.
const CalendarLayout = "2006-01-02"

// Stamped is implemented by structured timestamp encodings. Normalize uses
// this capability to tell them apart from plain date strings.
type Stamped interface {
	ToTime() time.Time
}

// Timestamp is the structured date encoding written by the stores. It keeps
// second and nanosecond parts so it can round-trip through any backend that
// stores an epoch value.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// NewTimestamp captures t as a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// TimestampFromMillis builds a Timestamp from epoch milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return NewTimestamp(time.UnixMilli(ms))
}

func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// Millis returns the timestamp as epoch milliseconds.
func (ts Timestamp) Millis() int64 {
	return ts.ToTime().UnixMilli()
}

// DateValue carries the two encodings of a transaction date. The structured
// timestamp is authoritative; Text is used for display and editing and only
// read for ordering when no timestamp is present.
type DateValue struct {
	Stamp Stamped
	Text  string
}

// NewDateValue writes both encodings for the calendar day of t.
func NewDateValue(t time.Time) DateValue {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DateValue{Stamp: NewTimestamp(day), Text: day.Format(CalendarLayout)}
}

// Instant normalizes the value to a single comparable point in time.
func (v DateValue) Instant() (time.Time, error) {
	if v.Stamp != nil {
		return Normalize(v.Stamp)
	}
	return Normalize(v.Text)
}

// Normalize converts either date encoding into a UTC instant. Structured
// values are detected by their ToTime method; strings are parsed as a
// calendar date or an RFC 3339 timestamp.
func Normalize(v any) (time.Time, error) {
	switch d := v.(type) {
	case DateValue:
		return d.Instant()
	case Stamped:
		t := d.ToTime()
		if t.IsZero() {
			return time.Time{}, ErrInvalidDate
		}
		return t.UTC(), nil
	case time.Time:
		if d.IsZero() {
			return time.Time{}, ErrInvalidDate
		}
		return d.UTC(), nil
	case string:
		return ParseDate(d)
	case nil:
		return time.Time{}, ErrInvalidDate
	}
	return time.Time{}, fmt.Errorf("%w: unsupported encoding %T", ErrInvalidDate, v)
}

// ParseDate reads a date string. Bare calendar dates resolve to UTC
// midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{CalendarLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseCalendarDay reads a date entered by a user and returns UTC midnight
// of the calendar day as written. Timestamps with an offset keep the day in
// that offset, so "2024-03-31T22:00:00-05:00" is March 31.
func ParseCalendarDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{CalendarLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormatDate renders a normalized instant the way transaction lists show
// it, e.g. "Jan 2".
func FormatDate(t time.Time) string {
	return t.UTC().Format("Jan 2")
}

// FormatLocaleDate renders a normalized instant as a US locale date,
// e.g. "1/2/2006".
func FormatLocaleDate(t time.Time) string {
	return t.UTC().Format("1/2/2006")
}
