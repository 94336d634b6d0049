package cache

import (
	"context"
	"time"

	"github.com/joacominatel/cadence/internal/application"
)

// Recorder receives cache outcome counts. metrics.Metrics implements it.
type Recorder interface {
	RecordCacheHit(backend string)
	RecordCacheMiss(backend string)
	RecordCacheError(backend string)
	RecordCacheEvictions(backend string, n int)
}

// InstrumentedProgressCache counts hits, misses and evictions of another
// application.ProgressCache under a backend label.
type InstrumentedProgressCache struct {
	inner    application.ProgressCache
	backend  string
	recorder Recorder
}

// NewInstrumentedProgressCache wraps inner.
func NewInstrumentedProgressCache(inner application.ProgressCache, backend string, recorder Recorder) *InstrumentedProgressCache {
	return &InstrumentedProgressCache{inner: inner, backend: backend, recorder: recorder}
}

// Get delegates and records the outcome.
func (c *InstrumentedProgressCache) Get(ctx context.Context, key application.ProgressKey) (float64, bool, error) {
	v, ok, err := c.inner.Get(ctx, key)
	switch {
	case err != nil:
		c.recorder.RecordCacheError(c.backend)
	case ok:
		c.recorder.RecordCacheHit(c.backend)
	default:
		c.recorder.RecordCacheMiss(c.backend)
	}
	return v, ok, err
}

// Set delegates.
func (c *InstrumentedProgressCache) Set(ctx context.Context, key application.ProgressKey, value float64, ttl time.Duration) error {
	return c.inner.Set(ctx, key, value, ttl)
}

// Evict delegates and counts the requested keys once the eviction succeeded.
func (c *InstrumentedProgressCache) Evict(ctx context.Context, keys ...application.ProgressKey) error {
	if err := c.inner.Evict(ctx, keys...); err != nil {
		return err
	}
	c.recorder.RecordCacheEvictions(c.backend, len(keys))
	return nil
}
