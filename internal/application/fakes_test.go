package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/joacominatel/cadence/internal/domain"
)

// memRecords is an in-memory record store.
type memRecords struct {
	mu      sync.Mutex
	values  map[domain.HabitID]map[domain.EpochDay]float64
	fetches int
	err     error
}

func newMemRecords() *memRecords {
	return &memRecords{values: make(map[domain.HabitID]map[domain.EpochDay]float64)}
}

func (m *memRecords) put(h domain.HabitID, d domain.EpochDay, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[h] == nil {
		m.values[h] = make(map[domain.EpochDay]float64)
	}
	m.values[h][d] = v
}

func (m *memRecords) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *memRecords) collect(h domain.HabitID, keep func(domain.EpochDay) bool) (domain.RecordSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.err != nil {
		return domain.RecordSeries{}, m.err
	}

	var records []domain.Record
	for d, v := range m.values[h] {
		if keep(d) {
			records = append(records, domain.Record{Day: d, Value: v})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Day < records[j].Day })
	return domain.NewRecordSeries(records), nil
}

func (m *memRecords) Fetch(_ context.Context, h domain.HabitID, r domain.DateRange) (domain.RecordSeries, error) {
	return m.collect(h, r.Contains)
}

func (m *memRecords) FetchSince(_ context.Context, h domain.HabitID, day domain.EpochDay) (domain.RecordSeries, error) {
	return m.collect(h, func(d domain.EpochDay) bool { return d >= day })
}

func (m *memRecords) Upsert(_ context.Context, h domain.HabitID, d domain.EpochDay, v float64) error {
	m.put(h, d, v)
	return nil
}

func (m *memRecords) Delete(_ context.Context, h domain.HabitID, d domain.EpochDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[h], d)
	return nil
}

type fakeGoals map[domain.HabitID]domain.GoalDefinition

func (f fakeGoals) GoalFor(_ context.Context, ref domain.HabitRef) (domain.GoalDefinition, error) {
	g, ok := f[ref.GoalHabit()]
	if !ok {
		return domain.GoalDefinition{}, domain.ErrNotFound
	}
	return g, nil
}

type fakeParticipants struct {
	sharedHabitsFn            func(context.Context) ([]domain.HabitID, error)
	sharedHabitParticipantsFn func(context.Context, domain.HabitID) ([]domain.Participant, error)
	findChallengeFn           func(context.Context, domain.ChallengeID) (domain.Challenge, error)
	challengeParticipantsFn   func(context.Context, domain.ChallengeID) ([]domain.Participant, error)
	linkedGoalHabitsFn        func(context.Context, domain.HabitID) ([]domain.HabitID, error)
	pendingChallengesFn       func(context.Context, domain.EpochDay) ([]domain.ChallengeID, error)
}

func (f *fakeParticipants) SharedHabits(ctx context.Context) ([]domain.HabitID, error) {
	if f.sharedHabitsFn != nil {
		return f.sharedHabitsFn(ctx)
	}
	return nil, nil
}

func (f *fakeParticipants) SharedHabitParticipants(ctx context.Context, id domain.HabitID) ([]domain.Participant, error) {
	if f.sharedHabitParticipantsFn != nil {
		return f.sharedHabitParticipantsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeParticipants) FindChallenge(ctx context.Context, id domain.ChallengeID) (domain.Challenge, error) {
	if f.findChallengeFn != nil {
		return f.findChallengeFn(ctx, id)
	}
	return domain.Challenge{}, errors.New("findChallengeFn not provided")
}

func (f *fakeParticipants) ChallengeParticipants(ctx context.Context, id domain.ChallengeID) ([]domain.Participant, error) {
	if f.challengeParticipantsFn != nil {
		return f.challengeParticipantsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeParticipants) LinkedGoalHabits(ctx context.Context, id domain.HabitID) ([]domain.HabitID, error) {
	if f.linkedGoalHabitsFn != nil {
		return f.linkedGoalHabitsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeParticipants) PendingChallenges(ctx context.Context, day domain.EpochDay) ([]domain.ChallengeID, error) {
	if f.pendingChallengesFn != nil {
		return f.pendingChallengesFn(ctx, day)
	}
	return nil, nil
}

type fakePlacements struct {
	mu       sync.Mutex
	replaced map[string][]domain.Placement
	byAcct   []domain.Placement
}

func (f *fakePlacements) ReplacePlacements(_ context.Context, h domain.HabitID, periodKey string, p []domain.Placement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.Placement)
	}
	f.replaced[h.String()+"|"+periodKey] = p
	return nil
}

func (f *fakePlacements) ListByAccount(_ context.Context, a domain.AccountID) ([]domain.Placement, error) {
	var out []domain.Placement
	for _, p := range f.byAcct {
		if p.ParticipantID == a {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeResults struct {
	mu        sync.Mutex
	results   []domain.ChallengeResult
	listCalls int
	listErr   error
}

func (f *fakeResults) ReplaceResults(_ context.Context, id domain.ChallengeID, results []domain.ChallengeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.results[:0]
	for _, r := range f.results {
		if r.ChallengeID != id {
			kept = append(kept, r)
		}
	}
	f.results = append(kept, results...)
	return nil
}

func (f *fakeResults) ListResults(context.Context) ([]domain.ChallengeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.ChallengeResult(nil), f.results...), nil
}

// mapCache is a ProgressCache over a plain map that remembers ttls.
type mapCache struct {
	mu     sync.Mutex
	values map[string]float64
	ttls   map[string]time.Duration
	err    error
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]float64), ttls: make(map[string]time.Duration)}
}

func (c *mapCache) Get(_ context.Context, key ProgressKey) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, false, c.err
	}
	v, ok := c.values[key.String()]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key ProgressKey, v float64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.values[key.String()] = v
	c.ttls[key.String()] = ttl
	return nil
}

func (c *mapCache) Evict(_ context.Context, keys ...ProgressKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, k := range keys {
		delete(c.values, k.String())
	}
	return nil
}

func (c *mapCache) has(key ProgressKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key.String()]
	return ok
}

type mapHistory struct {
	months map[string]map[domain.EpochDay]float64
	ttls   map[string]time.Duration
}

func newMapHistory() *mapHistory {
	return &mapHistory{months: make(map[string]map[domain.EpochDay]float64), ttls: make(map[string]time.Duration)}
}

func historyKey(ref domain.HabitRef, m domain.Month) string {
	return ref.String() + "|" + m.Key()
}

func (h *mapHistory) GetMonth(_ context.Context, ref domain.HabitRef, m domain.Month) (map[domain.EpochDay]float64, bool, error) {
	v, ok := h.months[historyKey(ref, m)]
	return v, ok, nil
}

func (h *mapHistory) SetMonth(_ context.Context, ref domain.HabitRef, m domain.Month, days map[domain.EpochDay]float64, ttl time.Duration) error {
	h.months[historyKey(ref, m)] = days
	h.ttls[historyKey(ref, m)] = ttl
	return nil
}

func (h *mapHistory) EvictMonths(_ context.Context, ref domain.HabitRef, months ...domain.Month) error {
	for _, m := range months {
		delete(h.months, historyKey(ref, m))
	}
	return nil
}

type txMarker struct{}

// fakeUoW marks transactional contexts so tests can tell where a call ran.
type fakeUoW struct {
	committed  int
	rolledBack int
}

func (u *fakeUoW) Begin(ctx context.Context) (context.Context, error) {
	return context.WithValue(ctx, txMarker{}, true), nil
}

func (u *fakeUoW) Commit(context.Context) error {
	u.committed++
	return nil
}

func (u *fakeUoW) Rollback(context.Context) error {
	if u.committed == 0 {
		u.rolledBack++
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

func fixedClock(t time.Time) TimeProvider {
	return func() time.Time { return t }
}
