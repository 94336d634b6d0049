package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

var (
	// friday 2026-10-16, 18:00 UTC
	now       = time.Date(2026, time.October, 16, 18, 0, 0, 0, time.UTC)
	today     = domain.EpochDayOf(2026, time.October, 16)
	monday    = domain.EpochDayOf(2026, time.October, 12)
	wednesday = domain.EpochDayOf(2026, time.October, 14)
	sunday    = domain.EpochDayOf(2026, time.October, 18)
)

func weekly(times int) domain.GoalDefinition {
	return domain.GoalDefinition{
		TargetDays:          7,
		Frequency:           domain.FrequencyWeekly,
		TimesNeeded:         times,
		ReachableDailyValue: 1,
	}
}

type progressFixture struct {
	records *memRecords
	cache   *mapCache
	history *mapHistory
	service *ProgressService
	habit   domain.HabitID
	ref     domain.HabitRef
}

func newProgressFixture(goal domain.GoalDefinition) *progressFixture {
	habit := domain.NewHabitID()
	f := &progressFixture{
		records: newMemRecords(),
		cache:   newMapCache(),
		history: newMapHistory(),
		habit:   habit,
		ref:     domain.SelfRef(habit),
	}
	f.service = NewProgressService(f.records, fakeGoals{habit: goal}, logging.NewDiscard()).
		WithCache(f.cache).
		WithHistoryCache(f.history).
		WithTimeProvider(fixedClock(now))
	return f
}

func TestProgressService_CacheCoherence(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(3))

	before, err := f.service.CompletionPercentage(ctx, f.ref, wednesday, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before != 0 {
		t.Fatalf("expected 0 without records, got %f", before)
	}

	f.records.put(f.habit, monday, 1)

	stale, _ := f.service.CompletionPercentage(ctx, f.ref, wednesday, false)
	if stale != before {
		t.Fatalf("expected cached value %f until eviction, got %f", before, stale)
	}

	if err := f.service.OnRecordChanged(ctx, f.ref, monday); err != nil {
		t.Fatalf("unexpected eviction error: %v", err)
	}

	after, _ := f.service.CompletionPercentage(ctx, f.ref, wednesday, false)
	expected := 100.0 / 7.0
	if !approx(after, expected) {
		t.Errorf("expected ~%f after eviction, got %f", expected, after)
	}

	fetches := f.records.fetchCount()
	again, _ := f.service.CompletionPercentage(ctx, f.ref, wednesday, false)
	if again != after {
		t.Errorf("expected identical cached value %f, got %f", after, again)
	}
	if f.records.fetchCount() != fetches {
		t.Error("expected second read to be served from cache")
	}
}

func TestProgressService_OnRecordChangedEvictionSpan(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(3))

	previousSunday := monday.AddDays(-1)
	for d := previousSunday; d <= sunday; d++ {
		_, _ = f.service.CompletionPercentage(ctx, f.ref, d, false)
		_, _ = f.service.CompletionPercentage(ctx, f.ref, d, true)
		_, _ = f.service.CompletionForDay(ctx, f.ref, d)
	}
	_, _ = f.service.CompletionPercentageToday(ctx, f.ref)

	if err := f.service.OnRecordChanged(ctx, f.ref, wednesday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		key     ProgressKey
		evicted bool
	}{
		{"completion_same_week_before_day", ProgressKey{Ref: f.ref, Kind: KindCompletion, Day: monday}, true},
		{"completion_same_week_after_day", ProgressKey{Ref: f.ref, Kind: KindCompletion, Day: sunday}, true},
		{"completion_previous_week", ProgressKey{Ref: f.ref, Kind: KindCompletion, Day: previousSunday}, false},
		// monday's look-ahead window ends on sunday and reads wednesday
		{"look_ahead_from_week_start", ProgressKey{Ref: f.ref, Kind: KindPercentageAhead, Day: monday}, true},
		{"percentage_on_day", ProgressKey{Ref: f.ref, Kind: KindPercentage, Day: wednesday}, true},
		{"percentage_up_to_today", ProgressKey{Ref: f.ref, Kind: KindPercentage, Day: today}, true},
		{"percentage_after_today_kept", ProgressKey{Ref: f.ref, Kind: KindPercentage, Day: sunday}, false},
		{"percentage_previous_week", ProgressKey{Ref: f.ref, Kind: KindPercentage, Day: previousSunday}, false},
		{"today", ProgressKey{Ref: f.ref, Kind: KindToday}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := !f.cache.has(tt.key); got != tt.evicted {
				t.Errorf("expected evicted=%v for %s, got %v", tt.evicted, tt.key, got)
			}
		})
	}
}

func TestProgressService_CustomCompletionEvictsForward(t *testing.T) {
	ctx := context.Background()
	goal := domain.GoalDefinition{
		TargetDays:          7,
		Frequency:           domain.FrequencyCustom,
		CustomTimes:         2,
		CustomDays:          7,
		ReachableDailyValue: 1,
	}
	f := newProgressFixture(goal)

	changed := today.AddDays(-6)
	_, _ = f.service.CompletionForDay(ctx, f.ref, today)
	_, _ = f.service.CompletionForDay(ctx, f.ref, changed.AddDays(-7))

	if err := f.service.OnRecordChanged(ctx, f.ref, changed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.cache.has(ProgressKey{Ref: f.ref, Kind: KindCompletion, Day: today}) {
		t.Error("expected today's window, which contains the changed day, to be evicted")
	}
	if !f.cache.has(ProgressKey{Ref: f.ref, Kind: KindCompletion, Day: changed.AddDays(-7)}) {
		t.Error("expected a window ending before the changed day to be kept")
	}
}

func TestProgressService_CompletionForDay(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(2))
	f.records.put(f.habit, monday, 1)
	f.records.put(f.habit, wednesday, 1)

	tuesday, _ := f.service.CompletionForDay(ctx, f.ref, monday+1)
	thursday, _ := f.service.CompletionForDay(ctx, f.ref, wednesday+1)

	if tuesday {
		t.Error("expected tuesday incomplete")
	}
	if !thursday {
		t.Error("expected thursday complete")
	}
}

func TestProgressService_TodayExpiresAtMidnight(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(1))
	f.records.put(f.habit, today, 1)

	got, err := f.service.CompletionPercentageToday(ctx, f.ref)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// saturday and sunday of the previous week weigh 2/7 with nothing done;
	// the open week is already achieved and counts in full.
	expected := 100 * 7.0 / 9.0
	if !approx(got, expected) {
		t.Errorf("expected ~%f, got %f", expected, got)
	}
	key := ProgressKey{Ref: f.ref, Kind: KindToday}.String()
	if ttl := f.cache.ttls[key]; ttl != 6*time.Hour {
		t.Errorf("expected ttl of 6h until midnight, got %s", ttl)
	}
}

func TestProgressService_MonthHistory(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(1))
	f.records.put(f.habit, monday, 1)

	october := domain.Month{Year: 2026, Month: time.October}
	history, err := f.service.MonthHistory(ctx, f.ref, october)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 16 {
		t.Errorf("expected 16 days up to today, got %d", len(history))
	}
	if history[today] <= 0 {
		t.Errorf("expected today's history to see monday's record, got %f", history[today])
	}
	if ttl := f.history.ttls[historyKey(f.ref, october)]; ttl != 6*time.Hour {
		t.Errorf("expected current month to expire at midnight, got %s", ttl)
	}

	september, _ := f.service.MonthHistory(ctx, f.ref, october.Previous())
	if len(september) != 30 {
		t.Errorf("expected 30 days for september, got %d", len(september))
	}
	if ttl := f.history.ttls[historyKey(f.ref, october.Previous())]; ttl != 0 {
		t.Errorf("expected past month without expiry, got %s", ttl)
	}

	november, _ := f.service.MonthHistory(ctx, f.ref, october.Next())
	if len(november) != 0 {
		t.Errorf("expected no history for a future month, got %d days", len(november))
	}
}

func TestProgressService_MonthHistoryEvictedAcrossMonths(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(1))
	october := domain.Month{Year: 2026, Month: time.October}

	_, _ = f.service.MonthHistory(ctx, f.ref, october.Previous())
	_, _ = f.service.MonthHistory(ctx, f.ref, october)

	// monday 09-28: the percentage span runs to 10-04
	if err := f.service.OnRecordChanged(ctx, f.ref, domain.EpochDayOf(2026, time.September, 28)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.history.months[historyKey(f.ref, october.Previous())]; ok {
		t.Error("expected september history evicted")
	}
	if _, ok := f.history.months[historyKey(f.ref, october)]; ok {
		t.Error("expected october history evicted")
	}
}

func TestProgressService_CacheFailureDegradesToCompute(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(1))
	f.records.put(f.habit, wednesday, 1)
	f.cache.err = errors.New("connection refused")

	got, err := f.service.CompletionPercentage(ctx, f.ref, sunday, false)

	if err != nil {
		t.Fatalf("expected cache failure to be absorbed, got %v", err)
	}
	if got != 100 {
		t.Errorf("expected 100, got %f", got)
	}
}

func TestProgressService_EvictionFailureIsReturned(t *testing.T) {
	f := newProgressFixture(weekly(1))
	f.cache.err = errors.New("connection refused")

	if err := f.service.OnRecordChanged(context.Background(), f.ref, wednesday); err == nil {
		t.Error("expected eviction failure to be returned")
	}
}

func TestProgressService_UnsupportedFrequencyFails(t *testing.T) {
	goal := weekly(1)
	goal.Frequency = domain.FrequencyType("yearly")
	f := newProgressFixture(goal)

	_, err := f.service.CompletionPercentage(context.Background(), f.ref, wednesday, true)

	if !errors.Is(err, domain.ErrUnsupportedFrequencyType) {
		t.Errorf("expected ErrUnsupportedFrequencyType, got %v", err)
	}
}

func TestProgressService_SharedGoalReadsParticipantRecords(t *testing.T) {
	ctx := context.Background()
	shared, own := domain.NewHabitID(), domain.NewHabitID()
	records := newMemRecords()
	records.put(own, monday, 1)
	records.put(own, wednesday, 1)
	records.put(shared, monday, 1)

	// the participant's own habit has no goal configured
	service := NewProgressService(records, fakeGoals{shared: weekly(2)}, logging.NewDiscard()).
		WithTimeProvider(fixedClock(now))

	got, err := service.CompletionForDay(ctx, domain.HabitRef{Goal: shared, Value: own}, wednesday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected the participant's records to satisfy the shared goal")
	}

	if _, err := service.CompletionForDay(ctx, domain.SelfRef(own), wednesday); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a habit without goal, got %v", err)
	}
}

func TestProgressService_TotalAchievementAndMaxValue(t *testing.T) {
	ctx := context.Background()
	f := newProgressFixture(weekly(3))
	f.records.put(f.habit, monday, 4)
	f.records.put(f.habit, wednesday, 0.5)
	week := domain.DateRange{Start: monday, End: sunday}

	total, _ := f.service.TotalAchievement(ctx, f.ref, week)
	maxValue, _ := f.service.MaxValue(ctx, f.ref, week)

	if !approx(total, 1.5) {
		t.Errorf("expected total 1.5 day ratios, got %f", total)
	}
	if maxValue != 4 {
		t.Errorf("expected max value 4, got %f", maxValue)
	}
}

func approx(a, b float64) bool {
	const tolerance = 0.001
	return a > b-tolerance && a < b+tolerance
}
