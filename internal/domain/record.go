package domain

import (
	"sort"
	"time"
)

// Record is one stored value of a habit for one day.
type Record struct {
	Day       EpochDay
	Value     float64
	CreatedAt time.Time
}

// RecordSeries is the ordered, de-duplicated record set of one habit.
// days without a record read as 0.
type RecordSeries struct {
	values     map[EpochDay]float64
	days       []EpochDay
	duplicates int
}

// NewRecordSeries builds a series from raw records.
// when a day appears more than once the earliest created record wins and
// the rest are ignored; the write path owns reconciling them.
func NewRecordSeries(records []Record) RecordSeries {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	s := RecordSeries{values: make(map[EpochDay]float64, len(ordered))}
	for _, r := range ordered {
		if _, seen := s.values[r.Day]; seen {
			s.duplicates++
			continue
		}
		s.values[r.Day] = r.Value
		s.days = append(s.days, r.Day)
	}
	sort.Slice(s.days, func(i, j int) bool { return s.days[i] < s.days[j] })
	return s
}

// Value returns the value recorded for d, 0 when absent.
func (s RecordSeries) Value(d EpochDay) float64 {
	return s.values[d]
}

// Has reports whether a record exists for d.
func (s RecordSeries) Has(d EpochDay) bool {
	_, ok := s.values[d]
	return ok
}

// Len returns the number of distinct days with a record.
func (s RecordSeries) Len() int {
	return len(s.days)
}

// Duplicates returns how many records were dropped as same-day duplicates.
func (s RecordSeries) Duplicates() int {
	return s.duplicates
}

// Days returns the recorded days in ascending order.
func (s RecordSeries) Days() []EpochDay {
	out := make([]EpochDay, len(s.days))
	copy(out, s.days)
	return out
}

// InRange returns the recorded days that fall inside r, ascending.
func (s RecordSeries) InRange(r DateRange) []EpochDay {
	lo := sort.Search(len(s.days), func(i int) bool { return s.days[i] >= r.Start })
	hi := sort.Search(len(s.days), func(i int) bool { return s.days[i] > r.End })
	if lo >= hi {
		return nil
	}
	return s.days[lo:hi]
}

// Sum adds up raw values recorded inside r.
func (s RecordSeries) Sum(r DateRange) float64 {
	var total float64
	for _, d := range s.InRange(r) {
		total += s.values[d]
	}
	return total
}

// Max returns the largest value recorded inside r, 0 when there is none.
func (s RecordSeries) Max(r DateRange) float64 {
	days := s.InRange(r)
	if len(days) == 0 {
		return 0
	}
	best := s.values[days[0]]
	for _, d := range days[1:] {
		if v := s.values[d]; v > best {
			best = v
		}
	}
	return best
}

// FilterWeekdays keeps only records on whitelisted weekdays.
// an empty whitelist returns the series unchanged.
func (s RecordSeries) FilterWeekdays(whitelist WeekdaySet) RecordSeries {
	if whitelist.IsEmpty() {
		return s
	}
	out := RecordSeries{values: make(map[EpochDay]float64, len(s.days)), duplicates: s.duplicates}
	for _, d := range s.days {
		if whitelist.Contains(d.Weekday()) {
			out.values[d] = s.values[d]
			out.days = append(out.days, d)
		}
	}
	return out
}
