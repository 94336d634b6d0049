package application

import (
	"context"
	"fmt"
	"time"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// ProgressKind distinguishes the cached results of one habit ref.
type ProgressKind string

const (
	KindPercentage      ProgressKind = "pct"
	KindPercentageAhead ProgressKind = "pct_ahead"
	KindCompletion      ProgressKind = "done"
	// KindToday is the look-ahead percentage as of today; it has no day.
	KindToday ProgressKind = "today"
)

// ProgressKey identifies one cached progress result.
type ProgressKey struct {
	Ref  domain.HabitRef
	Kind ProgressKind
	Day  domain.EpochDay
}

// String returns the key as stored by cache backends.
func (k ProgressKey) String() string {
	if k.Kind == KindToday {
		return fmt.Sprintf("progress:%s:%s", k.Ref, k.Kind)
	}
	return fmt.Sprintf("progress:%s:%s:%d", k.Ref, k.Kind, int64(k.Day))
}

// ProgressCache stores computed progress values.
// implementations live in infrastructure; a zero ttl means no expiry.
type ProgressCache interface {
	Get(ctx context.Context, key ProgressKey) (float64, bool, error)
	Set(ctx context.Context, key ProgressKey, value float64, ttl time.Duration) error
	Evict(ctx context.Context, keys ...ProgressKey) error
}

// HistoryCache stores per-day no-future percentages of one month.
type HistoryCache interface {
	GetMonth(ctx context.Context, ref domain.HabitRef, month domain.Month) (map[domain.EpochDay]float64, bool, error)
	SetMonth(ctx context.Context, ref domain.HabitRef, month domain.Month, days map[domain.EpochDay]float64, ttl time.Duration) error
	EvictMonths(ctx context.Context, ref domain.HabitRef, months ...domain.Month) error
}

// ProgressService serves progress reads over the achievement calculator
// with cache-aside memoization, and evicts on record changes.
type ProgressService struct {
	records      domain.RecordRepository
	goals        domain.GoalRepository
	cache        ProgressCache
	history      HistoryCache
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewProgressService creates a ProgressService without caching.
func NewProgressService(
	records domain.RecordRepository,
	goals domain.GoalRepository,
	logger *logging.Logger,
) *ProgressService {
	return &ProgressService{
		records:      records,
		goals:        goals,
		cache:        noProgressCache{},
		history:      noHistoryCache{},
		timeProvider: RealTime,
		logger:       logger.WithComponent("progress"),
	}
}

// WithCache sets the cache for percentage and completion results.
func (s *ProgressService) WithCache(c ProgressCache) *ProgressService {
	s.cache = c
	return s
}

// WithHistoryCache sets the cache for month history.
func (s *ProgressService) WithHistoryCache(h HistoryCache) *ProgressService {
	s.history = h
	return s
}

// WithTimeProvider sets a custom time provider for testing.
func (s *ProgressService) WithTimeProvider(tp TimeProvider) *ProgressService {
	s.timeProvider = tp
	return s
}

// CompletionPercentage returns the completion percentage of the window ending at asOf.
func (s *ProgressService) CompletionPercentage(ctx context.Context, ref domain.HabitRef, asOf domain.EpochDay, lookIntoFuture bool) (float64, error) {
	kind := KindPercentage
	if lookIntoFuture {
		kind = KindPercentageAhead
	}

	return s.cached(ctx, ProgressKey{Ref: ref, Kind: kind, Day: asOf}, 0, func(ctx context.Context) (float64, error) {
		q, err := s.load(ctx, ref, func(g domain.GoalDefinition) domain.DateRange {
			return domain.NewProgressQuery(g, domain.RecordSeries{}).BaseWindow(asOf)
		})
		if err != nil {
			return 0, err
		}
		return q.CompletionPercentage(asOf, lookIntoFuture)
	})
}

// CompletionPercentageNoFuture returns the percentage of the base window only.
func (s *ProgressService) CompletionPercentageNoFuture(ctx context.Context, ref domain.HabitRef, asOf domain.EpochDay) (float64, error) {
	return s.CompletionPercentage(ctx, ref, asOf, false)
}

// CompletionPercentageToday returns the look-ahead percentage as of today.
// the cached value expires at midnight.
func (s *ProgressService) CompletionPercentageToday(ctx context.Context, ref domain.HabitRef) (float64, error) {
	today := s.timeProvider.today()

	return s.cached(ctx, ProgressKey{Ref: ref, Kind: KindToday}, s.timeProvider.untilMidnight(), func(ctx context.Context) (float64, error) {
		goal, err := s.goal(ctx, ref)
		if err != nil {
			return 0, err
		}

		base := domain.NewProgressQuery(goal, domain.RecordSeries{}).BaseWindow(today)
		since := domain.RecordsNeeded(goal, base).Start
		records, err := s.records.FetchSince(ctx, ref.Value, since)
		if err != nil {
			return 0, fmt.Errorf("fetching records of %s: %w", ref.Value, err)
		}

		return domain.NewProgressQuery(goal, records).CompletionPercentage(today, true)
	})
}

// CompletionForDay reports whether the period containing day was achieved
// with the records up to day.
func (s *ProgressService) CompletionForDay(ctx context.Context, ref domain.HabitRef, day domain.EpochDay) (bool, error) {
	v, err := s.cached(ctx, ProgressKey{Ref: ref, Kind: KindCompletion, Day: day}, 0, func(ctx context.Context) (float64, error) {
		q, err := s.load(ctx, ref, func(domain.GoalDefinition) domain.DateRange {
			return domain.DateRange{Start: day, End: day}
		})
		if err != nil {
			return 0, err
		}
		done, err := q.CompletionForDay(day)
		if err != nil || !done {
			return 0, err
		}
		return 1, nil
	})
	return v == 1, err
}

// TotalAchievement returns the mode-dependent achievement total over r.
func (s *ProgressService) TotalAchievement(ctx context.Context, ref domain.HabitRef, r domain.DateRange) (float64, error) {
	q, err := s.load(ctx, ref, func(domain.GoalDefinition) domain.DateRange { return r })
	if err != nil {
		return 0, err
	}
	return q.TotalAchievement(r)
}

// MaxValue returns the largest record value of the ref's value habit in r.
func (s *ProgressService) MaxValue(ctx context.Context, ref domain.HabitRef, r domain.DateRange) (float64, error) {
	records, err := s.records.Fetch(ctx, ref.Value, r)
	if err != nil {
		return 0, fmt.Errorf("fetching records of %s: %w", ref.Value, err)
	}
	return domain.MaxValue(records, r), nil
}

// MonthHistory returns the no-future percentage of every day of month up to today.
func (s *ProgressService) MonthHistory(ctx context.Context, ref domain.HabitRef, month domain.Month) (map[domain.EpochDay]float64, error) {
	today := s.timeProvider.today()
	days := month.Range()
	if days.Start > today {
		return map[domain.EpochDay]float64{}, nil
	}

	cached, ok, err := s.history.GetMonth(ctx, ref, month)
	if err != nil {
		s.logger.Warn("history cache read failed",
			"ref", ref.String(),
			"month", month.Key(),
			"error", err.Error(),
		)
	}
	if ok {
		return cached, nil
	}

	days.End = min(days.End, today)
	q, err := s.load(ctx, ref, func(g domain.GoalDefinition) domain.DateRange {
		return domain.DateRange{Start: days.Start.AddDays(-g.TargetDays + 1), End: days.End}
	})
	if err != nil {
		return nil, err
	}

	history := make(map[domain.EpochDay]float64, days.Days())
	for d := days.Start; d <= days.End; d++ {
		pct, err := q.CompletionPercentageNoFuture(d)
		if err != nil {
			return nil, err
		}
		history[d] = pct
	}

	// the current month grows by one day at midnight
	var ttl time.Duration
	if days.End == today {
		ttl = s.timeProvider.untilMidnight()
	}
	if err := s.history.SetMonth(ctx, ref, month, history, ttl); err != nil {
		s.logger.Warn("history cache write failed",
			"ref", ref.String(),
			"month", month.Key(),
			"error", err.Error(),
		)
	}
	return history, nil
}

// OnRecordChanged evicts every cached result that may have read the record
// of ref.Value on day. it must run before the change becomes visible to
// readers; an error here must abort the write.
func (s *ProgressService) OnRecordChanged(ctx context.Context, ref domain.HabitRef, day domain.EpochDay) error {
	goal, err := s.goal(ctx, ref)
	if err != nil {
		return err
	}

	today := s.timeProvider.today()
	completion := completionSpan(goal, day)
	percentage := percentageSpan(goal, day, today)

	keys := make([]ProgressKey, 0, completion.Days()+2*percentage.Days()+1)
	for d := completion.Start; d <= completion.End; d++ {
		keys = append(keys, ProgressKey{Ref: ref, Kind: KindCompletion, Day: d})
	}
	for d := percentage.Start; d <= percentage.End; d++ {
		keys = append(keys,
			ProgressKey{Ref: ref, Kind: KindPercentage, Day: d},
			ProgressKey{Ref: ref, Kind: KindPercentageAhead, Day: d},
		)
	}
	keys = append(keys, ProgressKey{Ref: ref, Kind: KindToday})

	if err := s.cache.Evict(ctx, keys...); err != nil {
		return fmt.Errorf("evicting progress of %s: %w", ref, err)
	}

	months := monthsOf(percentage)
	if err := s.history.EvictMonths(ctx, ref, months...); err != nil {
		return fmt.Errorf("evicting history of %s: %w", ref, err)
	}

	s.logger.Debug("progress evicted",
		"ref", ref.String(),
		"day", day.String(),
		"keys", len(keys),
		"months", len(months),
	)
	return nil
}

// cached implements the cache-aside read. cache failures degrade to recomputation.
func (s *ProgressService) cached(ctx context.Context, key ProgressKey, ttl time.Duration, compute func(context.Context) (float64, error)) (float64, error) {
	v, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("progress cache read failed",
			"key", key.String(),
			"error", err.Error(),
		)
	}
	if ok {
		return v, nil
	}

	v, err = compute(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, key, v, ttl); err != nil {
		s.logger.Warn("progress cache write failed",
			"key", key.String(),
			"error", err.Error(),
		)
	}
	return v, nil
}

func (s *ProgressService) goal(ctx context.Context, ref domain.HabitRef) (domain.GoalDefinition, error) {
	goal, err := s.goals.GoalFor(ctx, ref)
	if err != nil {
		return domain.GoalDefinition{}, fmt.Errorf("resolving goal of %s: %w", ref, err)
	}
	return goal, nil
}

// load resolves the goal and fetches the records the window needs.
func (s *ProgressService) load(ctx context.Context, ref domain.HabitRef, window func(domain.GoalDefinition) domain.DateRange) (domain.ProgressQuery, error) {
	goal, err := s.goal(ctx, ref)
	if err != nil {
		return domain.ProgressQuery{}, err
	}

	records, err := s.records.Fetch(ctx, ref.Value, domain.RecordsNeeded(goal, window(goal)))
	if err != nil {
		return domain.ProgressQuery{}, fmt.Errorf("fetching records of %s: %w", ref.Value, err)
	}
	if records.Duplicates() > 0 {
		s.logger.Warn("duplicate records ignored",
			"habit_id", ref.Value.String(),
			"duplicates", records.Duplicates(),
		)
	}
	return domain.NewProgressQuery(goal, records), nil
}

// completionSpan returns the days whose completion can read a record on day.
// calendar goals cover the whole week or month; custom goals every window
// that contains day, on either side of it.
func completionSpan(g domain.GoalDefinition, day domain.EpochDay) domain.DateRange {
	if g.Frequency.IsCalendar() {
		return domain.PeriodBounds(g, day)
	}
	n := max(g.CustomDays, 1)
	return domain.DateRange{Start: day.AddDays(-n + 1), End: day.AddDays(n - 1)}
}

// percentageSpan returns the as-of days whose percentage can read a record
// on day, capped at today.
func percentageSpan(g domain.GoalDefinition, day, today domain.EpochDay) domain.DateRange {
	span := domain.DateRange{Start: day, End: day.AddDays(max(g.TargetDays, 1) - 1)}
	if g.Frequency.IsCalendar() {
		// look-ahead reads up to the end of the open period
		span.Start = domain.PeriodBounds(g, day).Start
	}
	if g.Frequency == domain.FrequencyCustom {
		span.End = span.End.AddDays(max(g.CustomDays, 1) - 1)
	}
	span.End = min(span.End, today)
	return span
}

func monthsOf(r domain.DateRange) []domain.Month {
	if !r.Valid() {
		return nil
	}
	var months []domain.Month
	last := r.End.Month()
	for m := r.Start.Month(); !last.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

type noProgressCache struct{}

func (noProgressCache) Get(context.Context, ProgressKey) (float64, bool, error) { return 0, false, nil }
func (noProgressCache) Set(context.Context, ProgressKey, float64, time.Duration) error {
	return nil
}
func (noProgressCache) Evict(context.Context, ...ProgressKey) error { return nil }

type noHistoryCache struct{}

func (noHistoryCache) GetMonth(context.Context, domain.HabitRef, domain.Month) (map[domain.EpochDay]float64, bool, error) {
	return nil, false, nil
}
func (noHistoryCache) SetMonth(context.Context, domain.HabitRef, domain.Month, map[domain.EpochDay]float64, time.Duration) error {
	return nil
}
func (noHistoryCache) EvictMonths(context.Context, domain.HabitRef, ...domain.Month) error {
	return nil
}
