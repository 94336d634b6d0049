package domain

import "fmt"

// completionEpsilon absorbs float drift when a ratio should be exactly 1.
const completionEpsilon = 1e-9

// ComputationRequest carries everything one achievement computation needs.
// Goal and Records may come from two different habits.
type ComputationRequest struct {
	Goal    GoalDefinition
	Records RecordSeries
	Range   DateRange

	// ForcedRange, when set, clips Range and anchors the custom model's
	// window so that no day before its start is counted or required.
	ForcedRange *DateRange
}

// AchievementResult is the output of the achievement calculator.
type AchievementResult struct {
	// Percentage is in [0, 100].
	Percentage float64

	// TotalAchievement is the sum of day ratios for weekly/monthly goals
	// and the raw sum of record values for custom goals. the two modes use
	// different units; callers must not compare them across modes.
	TotalAchievement float64
}

// CalculateAchievement computes the achievement of a goal over a date range.
// this is a pure function; incomplete goals yield a zero result, an unknown
// frequency type yields ErrUnsupportedFrequencyType.
func CalculateAchievement(req ComputationRequest) (AchievementResult, error) {
	if err := checkFrequency(req.Goal); err != nil {
		return AchievementResult{}, err
	}
	if !req.Goal.IsComplete() {
		return AchievementResult{}, nil
	}

	r := req.Range
	if req.ForcedRange != nil {
		r = r.Intersect(*req.ForcedRange)
	}
	if !r.Valid() {
		return AchievementResult{}, nil
	}

	records := req.Records.FilterWeekdays(req.Goal.Weekdays)

	if req.Goal.Frequency.IsCalendar() {
		return calendarAchievement(req.Goal, records, r), nil
	}
	return customAchievement(req.Goal, records, r, forcedStart(req.ForcedRange)), nil
}

// MaxValue returns the largest record value inside r, or 0 when empty.
func MaxValue(records RecordSeries, r DateRange) float64 {
	return records.Max(r)
}

func checkFrequency(g GoalDefinition) error {
	if g.Frequency == "" || validFrequencyTypes[g.Frequency] {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFrequencyType, g.Frequency)
}

func forcedStart(forced *DateRange) *EpochDay {
	if forced == nil {
		return nil
	}
	start := forced.Start
	return &start
}

// calendarAchievement weighs each calendar period by how much of it lies in r.
//
// for every period touching r:
//
//	achievedDays = sum of dayRatio over allowed days in period ∩ r
//	periodAchievement = min(1, achievedDays / timesNeeded)
//	weight = overlap(period, r) / periodLength
//
// percentage = 100 * Σ(periodAchievement * weight) / Σ weight.
func calendarAchievement(g GoalDefinition, records RecordSeries, r DateRange) AchievementResult {
	var weighted, weights, total float64

	for _, period := range calendarPeriods(g.Frequency, r) {
		achievedDays := achievedDays(g, records, period.Intersect(r))
		total += achievedDays

		achievement := min(1, achievedDays/float64(g.TimesNeeded))
		weight := OverlapWeight(period.Start, period.End, r.Start, r.End, period.Days())

		weighted += achievement * weight
		weights += weight
	}

	result := AchievementResult{TotalAchievement: total}
	if weights > 0 {
		result.Percentage = 100 * weighted / weights
	}
	return result
}

// achievedDays sums the day ratios of all allowed days in r.
// absent days read as 0, which an avoidance goal counts as achieved.
func achievedDays(g GoalDefinition, records RecordSeries, r DateRange) float64 {
	var sum float64
	for d := r.Start; d <= r.End; d++ {
		if !g.Weekdays.Allows(d) {
			continue
		}
		sum += g.dayRatio(records.Value(d))
	}
	return sum
}

// customAchievement averages the per-day completion of the x-of-y model over r.
func customAchievement(g GoalDefinition, records RecordSeries, r DateRange, forced *EpochDay) AchievementResult {
	var sum float64
	var days int
	for d := r.Start; d <= r.End; d++ {
		if !g.Weekdays.Allows(d) {
			continue
		}
		sum += customDayCompletion(g, records, d, forced)
		days++
	}

	result := AchievementResult{TotalAchievement: records.Sum(r)}
	if days > 0 {
		result.Percentage = 100 * sum / float64(days)
	}
	return result
}

// customDayCompletion scores the trailing window of CustomDays ending at d.
//
// positive goals: min(1, Σ min(value, cap) / (cap * timesNeeded(d))).
// avoidance goals: min(1, Σ value). this ignores CustomTimes; kept as the
// observed behavior until avoidance semantics under x-of-y are settled.
func customDayCompletion(g GoalDefinition, records RecordSeries, d EpochDay, forced *EpochDay) float64 {
	times := g.CustomTimes
	windowStart, _ := SlidingWindow(d, g.CustomDays)

	if forced != nil {
		if d < *forced {
			return 0
		}
		times = min(times, int(d-*forced)+1)
		windowStart = max(windowStart, *forced)
	}

	var windowSum float64
	for _, day := range records.InRange(DateRange{Start: windowStart, End: d}) {
		windowSum += g.cappedValue(records.Value(day))
	}

	if g.Negative {
		return min(1, windowSum)
	}
	return min(1, windowSum/(g.ReachableDailyValue*float64(times)))
}

func reached(ratio float64) bool {
	return ratio >= 1-completionEpsilon
}
