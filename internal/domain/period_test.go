package domain

import (
	"testing"
	"time"
)

func TestEpochDay_RoundTrip(t *testing.T) {
	d := EpochDayOf(2026, time.October, 14)

	if d != 20740 {
		t.Errorf("expected epoch day 20740, got %d", d)
	}
	if d.String() != "2026-10-14" {
		t.Errorf("expected 2026-10-14, got %s", d)
	}
	if d.Weekday() != time.Wednesday {
		t.Errorf("expected wednesday, got %s", d.Weekday())
	}
	if EpochDayFromTime(time.Date(2026, time.October, 14, 23, 59, 0, 0, time.UTC)) != d {
		t.Error("expected time late in the day to truncate to the same epoch day")
	}
}

func TestWeekBounds(t *testing.T) {
	monday := EpochDayOf(2026, time.October, 12)
	sunday := EpochDayOf(2026, time.October, 18)

	for d := monday; d <= sunday; d++ {
		start, end := WeekBounds(d)
		if start != monday || end != sunday {
			t.Errorf("%s: expected %s..%s, got %s..%s", d, monday, sunday, start, end)
		}
	}

	// before the epoch the modulo must not go negative
	start, _ := WeekBounds(EpochDayOf(1969, time.December, 31))
	if start.Weekday() != time.Monday {
		t.Errorf("expected monday for pre-epoch week start, got %s", start.Weekday())
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name  string
		day   EpochDay
		first EpochDay
		last  EpochDay
	}{
		{"leap_february", EpochDayOf(2024, time.February, 10), EpochDayOf(2024, time.February, 1), EpochDayOf(2024, time.February, 29)},
		{"december", EpochDayOf(2025, time.December, 31), EpochDayOf(2025, time.December, 1), EpochDayOf(2025, time.December, 31)},
		{"first_day", EpochDayOf(2026, time.September, 1), EpochDayOf(2026, time.September, 1), EpochDayOf(2026, time.September, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := MonthBounds(tt.day)
			if first != tt.first || last != tt.last {
				t.Errorf("expected %s..%s, got %s..%s", tt.first, tt.last, first, last)
			}
		})
	}
}

func TestSlidingWindow(t *testing.T) {
	d := EpochDayOf(2026, time.October, 14)
	start, end := SlidingWindow(d, 7)

	if start != EpochDayOf(2026, time.October, 8) || end != d {
		t.Errorf("expected 2026-10-08..2026-10-14, got %s..%s", start, end)
	}
}

func TestOverlapWeight(t *testing.T) {
	tests := []struct {
		name                   string
		periodStart, periodEnd EpochDay
		rangeStart, rangeEnd   EpochDay
		periodLength           int
		expected               float64
	}{
		{"fully_inside", 0, 6, 0, 20, 7, 1},
		{"partial_tail", 0, 6, 3, 10, 7, 4.0 / 7.0},
		{"partial_head", 7, 13, 0, 8, 7, 2.0 / 7.0},
		{"no_overlap", 0, 6, 10, 20, 7, 0},
		{"zero_length", 0, 6, 0, 6, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverlapWeight(tt.periodStart, tt.periodEnd, tt.rangeStart, tt.rangeEnd, tt.periodLength)
			if !approx(got, tt.expected) {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestMonth_KeyAndNavigation(t *testing.T) {
	m := Month{Year: 2026, Month: time.January}

	if m.Key() != "2026-01" {
		t.Errorf("expected key 2026-01, got %s", m.Key())
	}
	if prev := m.Previous(); prev.Year != 2025 || prev.Month != time.December {
		t.Errorf("expected 2025-12, got %s", prev.Key())
	}
	parsed, err := ParseMonthKey("2026-01")
	if err != nil || parsed != m {
		t.Errorf("expected to parse back 2026-01, got %v (%v)", parsed, err)
	}
	if _, err := ParseMonthKey("january"); err == nil {
		t.Error("expected error for malformed month key")
	}
}

func TestWeekdaySet(t *testing.T) {
	var empty WeekdaySet
	if !empty.Allows(EpochDayOf(2026, time.October, 13)) {
		t.Error("expected empty set to allow every day")
	}

	set := NewWeekdaySet(time.Monday, time.Wednesday)
	if !set.Allows(EpochDayOf(2026, time.October, 12)) {
		t.Error("expected monday allowed")
	}
	if set.Allows(EpochDayOf(2026, time.October, 13)) {
		t.Error("expected tuesday filtered out")
	}
}

func approx(a, b float64) bool {
	const tolerance = 0.001
	return a > b-tolerance && a < b+tolerance
}
