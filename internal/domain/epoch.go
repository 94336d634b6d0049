package domain

import (
	"fmt"
	"time"
)

// EpochDay is the number of days since 1970-01-01 (UTC).
// all engine dates use this representation.
type EpochDay int64

const secondsPerDay = 24 * 60 * 60

// EpochDayFromTime truncates t to its calendar day in t's location.
func EpochDayFromTime(t time.Time) EpochDay {
	y, m, d := t.Date()
	return EpochDay(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// EpochDayOf builds an EpochDay from a calendar date.
func EpochDayOf(year int, month time.Month, day int) EpochDay {
	return EpochDay(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Time returns midnight UTC of the day.
func (d EpochDay) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Weekday returns the day of the week.
func (d EpochDay) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the day n days later (or earlier for negative n).
func (d EpochDay) AddDays(n int) EpochDay {
	return d + EpochDay(n)
}

// Month returns the calendar month the day falls in.
func (d EpochDay) Month() Month {
	t := d.Time()
	return Month{Year: t.Year(), Month: t.Month()}
}

// String formats the day as YYYY-MM-DD.
func (d EpochDay) String() string {
	return d.Time().Format(time.DateOnly)
}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start EpochDay
	End   EpochDay
}

// NewDateRange creates a range, rejecting end before start.
func NewDateRange(start, end EpochDay) (DateRange, error) {
	if end < start {
		return DateRange{}, fmt.Errorf("%w: range end %s before start %s", ErrInvalidInput, end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// Valid reports whether the range contains at least one day.
func (r DateRange) Valid() bool {
	return r.End >= r.Start
}

// Days returns the number of days in the range, 0 when invalid.
func (r DateRange) Days() int {
	if !r.Valid() {
		return 0
	}
	return int(r.End-r.Start) + 1
}

// Contains reports whether d lies inside the range.
func (r DateRange) Contains(d EpochDay) bool {
	return d >= r.Start && d <= r.End
}

// Intersect returns the overlap of two ranges.
// the result is invalid when they do not overlap.
func (r DateRange) Intersect(o DateRange) DateRange {
	return DateRange{Start: max(r.Start, o.Start), End: min(r.End, o.End)}
}

// String formats the range for logs.
func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Range returns the first through last day of the month.
func (m Month) Range() DateRange {
	first := EpochDayOf(m.Year, m.Month, 1)
	next := EpochDayOf(m.Year, m.Month+1, 1)
	return DateRange{Start: first, End: next - 1}
}

// Previous returns the month before m.
func (m Month) Previous() Month {
	t := time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next returns the month after m.
func (m Month) Next() Month {
	t := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Key returns the period key used for persisted placements, e.g. "2026-09".
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// ParseMonthKey parses a key produced by Month.Key.
func ParseMonthKey(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: month key %q", ErrInvalidInput, s)
	}
	return MonthOf(t), nil
}
