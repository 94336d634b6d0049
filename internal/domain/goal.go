package domain

import (
	"errors"
	"strings"
	"time"
)

// FrequencyType selects the recurrence model of a goal.
type FrequencyType string

const (
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
	// FrequencyCustom is the sliding "x times in y days" model.
	FrequencyCustom FrequencyType = "custom_x_per_y"
)

var ErrInvalidFrequencyType = errors.New("invalid frequency type")

var validFrequencyTypes = map[FrequencyType]bool{
	FrequencyWeekly:  true,
	FrequencyMonthly: true,
	FrequencyCustom:  true,
}

// ParseFrequencyType validates and returns a FrequencyType from a string.
// an empty string is accepted and means "not configured yet".
func ParseFrequencyType(s string) (FrequencyType, error) {
	ft := FrequencyType(strings.ToLower(s))
	if ft == "" || validFrequencyTypes[ft] {
		return ft, nil
	}
	return "", ErrInvalidFrequencyType
}

// String returns the string representation of the FrequencyType.
func (f FrequencyType) String() string {
	return string(f)
}

// IsCalendar reports whether the type partitions time into calendar periods.
func (f FrequencyType) IsCalendar() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

// WeekdaySet is a set of weekdays stored as a bitmask.
// the zero value is empty and means "every day counts".
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Contains reports whether the weekday is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// IsEmpty reports whether no weekday was selected.
func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

// Allows reports whether a day counts under this filter.
// an empty set allows every day.
func (s WeekdaySet) Allows(d EpochDay) bool {
	return s.IsEmpty() || s.Contains(d.Weekday())
}

// GoalDefinition is the immutable view of a habit's goal parameters.
// it is passed by value; the habit it was read from may differ from
// the habit whose records are evaluated against it.
type GoalDefinition struct {
	// TargetDays is the length of the rolling completion window.
	TargetDays int

	Frequency FrequencyType

	// TimesNeeded applies to weekly and monthly goals.
	TimesNeeded int

	// CustomTimes and CustomDays apply to the x-of-y-days model.
	CustomTimes int
	CustomDays  int

	// ReachableDailyValue is the per-day cap used as achievement denominator.
	ReachableDailyValue float64

	// Negative marks avoidance habits: the goal is to stay at or under the cap.
	Negative bool

	Weekdays WeekdaySet
}

// HasFrequencyParams reports whether the frequency configuration is complete.
// an unrecognized frequency type counts as configured so that the
// calculator can reject it loudly.
func (g GoalDefinition) HasFrequencyParams() bool {
	switch g.Frequency {
	case "":
		return false
	case FrequencyWeekly, FrequencyMonthly:
		return g.TimesNeeded > 0
	case FrequencyCustom:
		return g.CustomTimes > 0 && g.CustomDays > 0
	default:
		return true
	}
}

// IsComplete reports whether the goal can produce a non-zero result.
// partially configured habits are valid and simply evaluate to 0.
func (g GoalDefinition) IsComplete() bool {
	if g.TargetDays <= 0 || !g.HasFrequencyParams() {
		return false
	}
	// a positive goal needs a cap to divide by; avoidance goals may use 0.
	if !g.Negative && g.ReachableDailyValue <= 0 {
		return false
	}
	return true
}

// dayRatio scores one day's value against the daily cap.
func (g GoalDefinition) dayRatio(value float64) float64 {
	if g.Negative {
		if value <= g.ReachableDailyValue {
			return 1
		}
		return 0
	}
	return min(1, value/g.ReachableDailyValue)
}

// cappedValue limits a positive day's contribution to the daily cap.
func (g GoalDefinition) cappedValue(value float64) float64 {
	if g.Negative {
		return value
	}
	return min(value, g.ReachableDailyValue)
}
