package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joacominatel/cadence/internal/application"
	"github.com/joacominatel/cadence/internal/domain"
)

var base = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

func key(ref domain.HabitRef, day domain.EpochDay) application.ProgressKey {
	return application.ProgressKey{Ref: ref, Kind: application.KindPercentage, Day: day}
}

func TestMemoryProgressCache_GetSetEvict(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryProgressCache(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref := domain.SelfRef(domain.NewHabitID())
	day := domain.EpochDayFromTime(base)

	if _, ok, _ := c.Get(ctx, key(ref, day)); ok {
		t.Fatal("expected miss on empty cache")
	}

	_ = c.Set(ctx, key(ref, day), 42.5, 0)
	v, ok, err := c.Get(ctx, key(ref, day))
	if err != nil || !ok || v != 42.5 {
		t.Errorf("expected hit with 42.5, got %f %v %v", v, ok, err)
	}

	_ = c.Evict(ctx, key(ref, day), key(ref, day+1))
	if _, ok, _ := c.Get(ctx, key(ref, day)); ok {
		t.Error("expected miss after evict")
	}
}

func TestMemoryProgressCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, _ := NewMemoryProgressCache(16)
	now := base
	c.now = func() time.Time { return now }
	k := key(domain.SelfRef(domain.NewHabitID()), 1)

	_ = c.Set(ctx, k, 1, 6*time.Hour)

	tests := []struct {
		name    string
		advance time.Duration
		hit     bool
	}{
		{"before_expiry", 5*time.Hour + 59*time.Minute, true},
		{"at_expiry", 6 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base.Add(tt.advance)
			_, ok, _ := c.Get(ctx, k)
			if ok != tt.hit {
				t.Errorf("expected hit=%v, got %v", tt.hit, ok)
			}
		})
	}
}

func TestMemoryProgressCache_BoundedSize(t *testing.T) {
	ctx := context.Background()
	c, _ := NewMemoryProgressCache(2)
	ref := domain.SelfRef(domain.NewHabitID())

	_ = c.Set(ctx, key(ref, 1), 1, 0)
	_ = c.Set(ctx, key(ref, 2), 2, 0)
	_ = c.Set(ctx, key(ref, 3), 3, 0)

	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if _, ok, _ := c.Get(ctx, key(ref, 1)); ok {
		t.Error("expected least recently used entry to be dropped")
	}
}

func TestNewMemoryProgressCache_RejectsZeroSize(t *testing.T) {
	if _, err := NewMemoryProgressCache(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestMemoryHistoryCache_CopiesMonths(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryHistoryCache(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref := domain.SelfRef(domain.NewHabitID())
	month := domain.Month{Year: 2026, Month: time.September}
	days := map[domain.EpochDay]float64{1: 50, 2: 75}

	_ = c.SetMonth(ctx, ref, month, days, 0)
	days[1] = 0

	got, ok, err := c.GetMonth(ctx, ref, month)
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if got[1] != 50 {
		t.Errorf("expected stored copy to keep 50, got %f", got[1])
	}

	got[2] = 0
	again, _, _ := c.GetMonth(ctx, ref, month)
	if again[2] != 75 {
		t.Errorf("expected reads to return copies, got %f", again[2])
	}
}

func TestMemoryHistoryCache_EvictMonths(t *testing.T) {
	ctx := context.Background()
	c, _ := NewMemoryHistoryCache(4)
	ref := domain.SelfRef(domain.NewHabitID())
	sep := domain.Month{Year: 2026, Month: time.September}
	oct := domain.Month{Year: 2026, Month: time.October}

	_ = c.SetMonth(ctx, ref, sep, map[domain.EpochDay]float64{1: 1}, 0)
	_ = c.SetMonth(ctx, ref, oct, map[domain.EpochDay]float64{1: 1}, 0)
	_ = c.EvictMonths(ctx, ref, oct)

	if _, ok, _ := c.GetMonth(ctx, ref, sep); !ok {
		t.Error("expected september to survive")
	}
	if _, ok, _ := c.GetMonth(ctx, ref, oct); ok {
		t.Error("expected october to be evicted")
	}
}

type countingRecorder struct {
	hits, misses, errors, evictions int
}

func (r *countingRecorder) RecordCacheHit(string)           { r.hits++ }
func (r *countingRecorder) RecordCacheMiss(string)          { r.misses++ }
func (r *countingRecorder) RecordCacheError(string)         { r.errors++ }
func (r *countingRecorder) RecordCacheEvictions(_ string, n int) { r.evictions += n }

type failingCache struct{}

func (failingCache) Get(context.Context, application.ProgressKey) (float64, bool, error) {
	return 0, false, errors.New("connection refused")
}
func (failingCache) Set(context.Context, application.ProgressKey, float64, time.Duration) error {
	return nil
}
func (failingCache) Evict(context.Context, ...application.ProgressKey) error {
	return errors.New("connection refused")
}

func TestInstrumentedProgressCache(t *testing.T) {
	ctx := context.Background()
	mem, _ := NewMemoryProgressCache(8)
	rec := &countingRecorder{}
	c := NewInstrumentedProgressCache(mem, "memory", rec)
	ref := domain.SelfRef(domain.NewHabitID())

	_, _, _ = c.Get(ctx, key(ref, 1))
	_ = c.Set(ctx, key(ref, 1), 10, 0)
	_, _, _ = c.Get(ctx, key(ref, 1))
	_ = c.Evict(ctx, key(ref, 1), key(ref, 2))

	if rec.hits != 1 || rec.misses != 1 || rec.evictions != 2 {
		t.Errorf("expected 1 hit, 1 miss, 2 evictions, got %+v", *rec)
	}

	broken := NewInstrumentedProgressCache(failingCache{}, "redis", rec)
	_, _, _ = broken.Get(ctx, key(ref, 1))
	if err := broken.Evict(ctx, key(ref, 1)); err == nil {
		t.Error("expected eviction error to propagate")
	}
	if rec.errors != 1 || rec.evictions != 2 {
		t.Errorf("expected 1 error and no new evictions, got %+v", *rec)
	}
}
