package domain

// ProgressQuery pairs a goal definition with the record series evaluated
// against it. the pair is explicit so that a shared or challenge habit can
// score a participant's own records against a goal defined elsewhere.
type ProgressQuery struct {
	Goal    GoalDefinition
	Records RecordSeries

	// ForcedRange constrains every computation, e.g. to a challenge's dates.
	ForcedRange *DateRange
}

// NewProgressQuery creates a query without a forced range.
func NewProgressQuery(goal GoalDefinition, records RecordSeries) ProgressQuery {
	return ProgressQuery{Goal: goal, Records: records}
}

// WithForcedRange returns a copy constrained to r.
func (q ProgressQuery) WithForcedRange(r DateRange) ProgressQuery {
	q.ForcedRange = &r
	return q
}

// BaseWindow returns the rolling window of TargetDays ending at asOf.
func (q ProgressQuery) BaseWindow(asOf EpochDay) DateRange {
	return DateRange{Start: asOf.AddDays(-q.Goal.TargetDays + 1), End: asOf}
}

// CompletionPercentage returns the completion percentage of the window ending at asOf.
//
// with lookIntoFuture, calendar goals are also evaluated with the window
// extended to the end of the still-open week or month, and the better of
// the two results is returned. custom goals have no open period and never
// look ahead.
func (q ProgressQuery) CompletionPercentage(asOf EpochDay, lookIntoFuture bool) (float64, error) {
	base := q.BaseWindow(asOf)
	result, err := q.achievement(base)
	if err != nil {
		return 0, err
	}

	if !lookIntoFuture || !q.Goal.Frequency.IsCalendar() || !q.Goal.IsComplete() {
		return result.Percentage, nil
	}

	open := PeriodBounds(q.Goal, asOf)
	projected, err := q.achievement(DateRange{Start: base.Start, End: open.End})
	if err != nil {
		return 0, err
	}
	return max(result.Percentage, projected.Percentage), nil
}

// CompletionPercentageNoFuture evaluates only the base window.
// used for history where projecting into unstarted periods would mislead.
func (q ProgressQuery) CompletionPercentageNoFuture(asOf EpochDay) (float64, error) {
	return q.CompletionPercentage(asOf, false)
}

// CompletionForDay reports whether the period containing date was already
// achieved using only records up to and including date.
func (q ProgressQuery) CompletionForDay(date EpochDay) (bool, error) {
	if err := checkFrequency(q.Goal); err != nil {
		return false, err
	}
	if !q.Goal.IsComplete() {
		return false, nil
	}
	if q.ForcedRange != nil && !q.ForcedRange.Contains(date) {
		return false, nil
	}

	records := q.Records.FilterWeekdays(q.Goal.Weekdays)

	if q.Goal.Frequency.IsCalendar() {
		period := PeriodBounds(q.Goal, date)
		upTo := DateRange{Start: period.Start, End: date}
		if q.ForcedRange != nil {
			upTo = upTo.Intersect(*q.ForcedRange)
		}
		days := achievedDays(q.Goal, records, upTo)
		return reached(days / float64(q.Goal.TimesNeeded)), nil
	}

	return reached(customDayCompletion(q.Goal, records, date, forcedStart(q.ForcedRange))), nil
}

// PercentageForRange returns the achievement percentage over an explicit range.
func (q ProgressQuery) PercentageForRange(r DateRange) (float64, error) {
	result, err := q.achievement(r)
	return result.Percentage, err
}

// TotalAchievement returns the mode-dependent total over r.
func (q ProgressQuery) TotalAchievement(r DateRange) (float64, error) {
	result, err := q.achievement(r)
	return result.TotalAchievement, err
}

// MaxValue returns the largest raw record value in r, honoring the forced range.
func (q ProgressQuery) MaxValue(r DateRange) float64 {
	if q.ForcedRange != nil {
		r = r.Intersect(*q.ForcedRange)
	}
	if !r.Valid() {
		return 0
	}
	return MaxValue(q.Records, r)
}

// Score builds the ranking row for one participant over r.
func (q ProgressQuery) Score(participant AccountID, linkRef string, r DateRange) (ParticipantScore, error) {
	result, err := q.achievement(r)
	if err != nil {
		return ParticipantScore{}, err
	}
	return ParticipantScore{
		ParticipantID:    participant,
		Percentage:       result.Percentage,
		TotalAchievement: result.TotalAchievement,
		MaxValue:         q.MaxValue(r),
		LinkRef:          linkRef,
	}, nil
}

func (q ProgressQuery) achievement(r DateRange) (AchievementResult, error) {
	return CalculateAchievement(ComputationRequest{
		Goal:        q.Goal,
		Records:     q.Records,
		Range:       r,
		ForcedRange: q.ForcedRange,
	})
}

// RecordsNeeded returns the record range a computation over r reads.
// custom goals look back one window before r.Start; calendar goals may look
// ahead to the end of the period containing r.End.
func RecordsNeeded(g GoalDefinition, r DateRange) DateRange {
	out := r
	if g.Frequency == FrequencyCustom {
		out.Start = r.Start.AddDays(-max(g.CustomDays, 1) + 1)
	}
	if g.Frequency.IsCalendar() {
		out.End = PeriodBounds(g, r.End).End
		out.Start = PeriodBounds(g, r.Start).Start
	}
	return out
}
