package cache

import (
	"context"
	"fmt"
	"maps"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/joacominatel/cadence/internal/application"
	"github.com/joacominatel/cadence/internal/domain"
)

// entry wraps a cached value with its expiry.
// the lru itself has no ttl, so expired entries are dropped on read.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// MemoryProgressCache is an in-process application.ProgressCache bounded
// by entry count. least recently used entries are dropped when full.
type MemoryProgressCache struct {
	cache *lru.Cache
	now   func() time.Time
}

// NewMemoryProgressCache creates a cache holding at most size entries.
func NewMemoryProgressCache(size int) (*MemoryProgressCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating progress lru: %w", err)
	}
	return &MemoryProgressCache{cache: c, now: time.Now}, nil
}

// Get returns the cached value for key.
func (m *MemoryProgressCache) Get(_ context.Context, key application.ProgressKey) (float64, bool, error) {
	k := key.String()
	raw, ok := m.cache.Get(k)
	if !ok {
		return 0, false, nil
	}

	e := raw.(entry)
	if e.expired(m.now()) {
		m.cache.Remove(k)
		return 0, false, nil
	}
	return e.value.(float64), true, nil
}

// Set stores value under key. a zero ttl never expires.
func (m *MemoryProgressCache) Set(_ context.Context, key application.ProgressKey, value float64, ttl time.Duration) error {
	m.cache.Add(key.String(), entry{value: value, expiresAt: expiry(m.now(), ttl)})
	return nil
}

// Evict removes keys; missing keys are ignored.
func (m *MemoryProgressCache) Evict(_ context.Context, keys ...application.ProgressKey) error {
	for _, key := range keys {
		m.cache.Remove(key.String())
	}
	return nil
}

// Len returns the number of entries currently held, expired ones included.
func (m *MemoryProgressCache) Len() int {
	return m.cache.Len()
}

// MemoryHistoryCache is an in-process application.HistoryCache.
// one entry holds a whole month of one ref.
type MemoryHistoryCache struct {
	cache *lru.Cache
	now   func() time.Time
}

// NewMemoryHistoryCache creates a cache holding at most size months.
func NewMemoryHistoryCache(size int) (*MemoryHistoryCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating history lru: %w", err)
	}
	return &MemoryHistoryCache{cache: c, now: time.Now}, nil
}

func historyKey(ref domain.HabitRef, month domain.Month) string {
	return "history:" + ref.String() + ":" + month.Key()
}

// GetMonth returns a copy of the cached month.
func (m *MemoryHistoryCache) GetMonth(_ context.Context, ref domain.HabitRef, month domain.Month) (map[domain.EpochDay]float64, bool, error) {
	k := historyKey(ref, month)
	raw, ok := m.cache.Get(k)
	if !ok {
		return nil, false, nil
	}

	e := raw.(entry)
	if e.expired(m.now()) {
		m.cache.Remove(k)
		return nil, false, nil
	}
	return maps.Clone(e.value.(map[domain.EpochDay]float64)), true, nil
}

// SetMonth stores a copy of days so later caller mutations do not leak in.
func (m *MemoryHistoryCache) SetMonth(_ context.Context, ref domain.HabitRef, month domain.Month, days map[domain.EpochDay]float64, ttl time.Duration) error {
	m.cache.Add(historyKey(ref, month), entry{value: maps.Clone(days), expiresAt: expiry(m.now(), ttl)})
	return nil
}

// EvictMonths drops the given months of ref.
func (m *MemoryHistoryCache) EvictMonths(_ context.Context, ref domain.HabitRef, months ...domain.Month) error {
	for _, month := range months {
		m.cache.Remove(historyKey(ref, month))
	}
	return nil
}
