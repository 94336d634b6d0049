package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joacominatel/cadence/internal/application"
	"github.com/joacominatel/cadence/internal/domain"
)

const keyPrefix = "cadence:"

// RedisProgressCache is an application.ProgressCache shared by every
// process pointed at the same redis.
type RedisProgressCache struct {
	redis *RedisClient
}

// NewRedisProgressCache creates a progress cache on top of rc.
func NewRedisProgressCache(rc *RedisClient) *RedisProgressCache {
	return &RedisProgressCache{redis: rc}
}

func progressKey(key application.ProgressKey) string {
	return keyPrefix + key.String()
}

// Get returns the cached value for key. a missing key is a miss, not an error.
func (c *RedisProgressCache) Get(ctx context.Context, key application.ProgressKey) (float64, bool, error) {
	if c.redis == nil || c.redis.client == nil {
		return 0, false, ErrRedisNotConnected
	}

	v, err := c.redis.client.Get(ctx, progressKey(key)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get failed: %w", err)
	}
	return v, true, nil
}

// Set stores value under key. a zero ttl never expires.
func (c *RedisProgressCache) Set(ctx context.Context, key application.ProgressKey, value float64, ttl time.Duration) error {
	if c.redis == nil || c.redis.client == nil {
		return ErrRedisNotConnected
	}

	if err := c.redis.client.Set(ctx, progressKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Evict removes keys in a single DEL.
func (c *RedisProgressCache) Evict(ctx context.Context, keys ...application.ProgressKey) error {
	if len(keys) == 0 {
		return nil
	}
	if c.redis == nil || c.redis.client == nil {
		return ErrRedisNotConnected
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = progressKey(k)
	}
	if err := c.redis.client.Del(ctx, names...).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// RedisHistoryCache stores each cached month as a hash of day -> percentage.
type RedisHistoryCache struct {
	redis *RedisClient
}

// NewRedisHistoryCache creates a history cache on top of rc.
func NewRedisHistoryCache(rc *RedisClient) *RedisHistoryCache {
	return &RedisHistoryCache{redis: rc}
}

func monthKey(ref domain.HabitRef, month domain.Month) string {
	return keyPrefix + historyKey(ref, month)
}

// GetMonth reads a month hash. an empty hash is a miss.
func (c *RedisHistoryCache) GetMonth(ctx context.Context, ref domain.HabitRef, month domain.Month) (map[domain.EpochDay]float64, bool, error) {
	if c.redis == nil || c.redis.client == nil {
		return nil, false, ErrRedisNotConnected
	}

	fields, err := c.redis.client.HGetAll(ctx, monthKey(ref, month)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	days := make(map[domain.EpochDay]float64, len(fields))
	for field, raw := range fields {
		day, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("corrupted history field %q: %w", field, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, fmt.Errorf("corrupted history value %q: %w", raw, err)
		}
		days[domain.EpochDay(day)] = v
	}
	return days, true, nil
}

// SetMonth replaces the month hash atomically.
func (c *RedisHistoryCache) SetMonth(ctx context.Context, ref domain.HabitRef, month domain.Month, days map[domain.EpochDay]float64, ttl time.Duration) error {
	if len(days) == 0 {
		return nil
	}
	if c.redis == nil || c.redis.client == nil {
		return ErrRedisNotConnected
	}

	key := monthKey(ref, month)
	values := make(map[string]any, len(days))
	for day, v := range days {
		values[strconv.FormatInt(int64(day), 10)] = v
	}

	_, err := c.redis.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing history month: %w", err)
	}
	return nil
}

// EvictMonths drops the given months of ref.
func (c *RedisHistoryCache) EvictMonths(ctx context.Context, ref domain.HabitRef, months ...domain.Month) error {
	if len(months) == 0 {
		return nil
	}
	if c.redis == nil || c.redis.client == nil {
		return ErrRedisNotConnected
	}

	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = monthKey(ref, m)
	}
	if err := c.redis.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
