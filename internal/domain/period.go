package domain

// WeekBounds returns the monday and sunday of the week containing d.
func WeekBounds(d EpochDay) (EpochDay, EpochDay) {
	// time.Weekday has sunday=0; shift so monday=0.
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDays(-offset)
	return monday, monday.AddDays(6)
}

// MonthBounds returns the first and last day of the month containing d.
func MonthBounds(d EpochDay) (EpochDay, EpochDay) {
	r := d.Month().Range()
	return r.Start, r.End
}

// SlidingWindow returns the window of the given length ending at d.
func SlidingWindow(d EpochDay, days int) (EpochDay, EpochDay) {
	return d.AddDays(-days + 1), d
}

// PeriodBounds returns the period of the goal's recurrence model that contains d.
// for the custom model this is the trailing window ending at d.
func PeriodBounds(g GoalDefinition, d EpochDay) DateRange {
	var start, end EpochDay
	switch g.Frequency {
	case FrequencyWeekly:
		start, end = WeekBounds(d)
	case FrequencyMonthly:
		start, end = MonthBounds(d)
	default:
		start, end = SlidingWindow(d, max(g.CustomDays, 1))
	}
	return DateRange{Start: start, End: end}
}

// OverlapWeight returns the fraction of a period that lies inside the query range.
// the result is clamped to [0, 1]; a non-positive period length weighs 0.
func OverlapWeight(periodStart, periodEnd, rangeStart, rangeEnd EpochDay, periodLength int) float64 {
	if periodLength <= 0 {
		return 0
	}
	overlap := DateRange{Start: max(periodStart, rangeStart), End: min(periodEnd, rangeEnd)}.Days()
	return min(1, float64(overlap)/float64(periodLength))
}

// calendarPeriods partitions r into the calendar weeks or months it touches.
// the returned periods are full calendar periods, not clipped to r.
func calendarPeriods(freq FrequencyType, r DateRange) []DateRange {
	if !r.Valid() {
		return nil
	}
	var periods []DateRange
	for d := r.Start; d <= r.End; {
		var start, end EpochDay
		if freq == FrequencyWeekly {
			start, end = WeekBounds(d)
		} else {
			start, end = MonthBounds(d)
		}
		periods = append(periods, DateRange{Start: start, End: end})
		d = end + 1
	}
	return periods
}
