package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

const (
	// LeaderboardKey is the sorted set holding challenge leaderboard points.
	LeaderboardKey = "cadence:leaderboard"

	// default connection timeout
	defaultConnectTimeout = 10 * time.Second
)

var ErrRedisNotConnected = errors.New("redis not connected")

// RedisConfig holds configuration for Redis connection.
type RedisConfig struct {
	URL string
}

// RedisClient wraps the go-redis client with cadence-specific operations.
type RedisClient struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisClient creates a new Redis client from the config.
// returns nil if the URL is empty (redis disabled).
func NewRedisClient(cfg RedisConfig, logger *logging.Logger) (*RedisClient, error) {
	if cfg.URL == "" {
		logger.Info("redis disabled: no REDIS_URL configured")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	// progress reads fan out per participant, so keep a pool sized for that
	opts.DialTimeout = defaultConnectTimeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 50
	opts.MinIdleConns = 5

	return &RedisClient{
		client: redis.NewClient(opts),
		logger: logger.WithComponent("redis"),
	}, nil
}

// Connect tests the connection to Redis.
func (r *RedisClient) Connect(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	r.logger.Info("redis connected")
	return nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// PublishLeaderboard replaces the leaderboard sorted set with entries.
// DEL and ZADD run in one MULTI so readers never see a half-written board.
func (r *RedisClient) PublishLeaderboard(ctx context.Context, entries []domain.LeaderboardEntry) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: float64(e.Score), Member: e.AccountID.String()}
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, LeaderboardKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, LeaderboardKey, members...)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to publish leaderboard",
			"entries", len(entries),
			"error", err.Error(),
		)
		return fmt.Errorf("publishing leaderboard: %w", err)
	}

	r.logger.Debug("leaderboard published", "entries", len(entries))
	return nil
}

// HealthCheck verifies Redis is responding.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}
	return r.client.Ping(ctx).Err()
}
