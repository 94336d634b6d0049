package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/cadence/internal/infrastructure/config"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

const (
	// concurrent ranking passes: monthly placements and challenge finalization
	rankingPasses = 2

	// record writes, readiness probes and the leaderboard query
	reservedConns = 4

	minIdleConns   = 2
	connectTimeout = 10 * time.Second
)

// Connection owns the pgx pool shared by every repository.
type Connection struct {
	pool   *pgxpool.Pool
	config config.DatabaseConfig
	logger *logging.Logger
}

// New opens the pool and pings it once. fanOut is the number of participant
// fetches a single ranking pass runs concurrently; the pool is sized so both
// background passes can saturate their fan-out without starving writes.
func New(cfg config.DatabaseConfig, fanOut int, logger *logging.Logger) (*Connection, error) {
	componentLogger := logger.WithComponent("database")

	poolConfig, err := newPoolConfig(cfg, fanOut)
	if err != nil {
		componentLogger.DatabaseConnectionFailed(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		componentLogger.DatabaseConnectionFailed(err)
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	conn := &Connection{
		pool:   pool,
		config: cfg,
		logger: componentLogger,
	}

	if err := conn.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	componentLogger.DatabaseConnected(cfg.Host, cfg.Name)
	componentLogger.Debug("connection pool sized",
		"max_conns", poolConfig.MaxConns,
		"fan_out", fanOut,
	)
	return conn, nil
}

// newPoolConfig parses the connection string and applies the pool limits.
func newPoolConfig(cfg config.DatabaseConfig, fanOut int) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = maxConns(cfg.MaxConns, fanOut)
	poolConfig.MinConns = min(minIdleConns, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	// pgbouncer in transaction mode recycles connections between
	// transactions, so prepared statements cannot be used
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	return poolConfig, nil
}

// maxConns returns the explicit limit when set, otherwise one connection per
// concurrent fetch of each ranking pass plus the reserve.
func maxConns(configured, fanOut int) int32 {
	if configured > 0 {
		return int32(configured)
	}
	return int32(rankingPasses*max(fanOut, 1) + reservedConns)
}

// HealthCheck runs a trivial query on a pooled connection.
func (c *Connection) HealthCheck(ctx context.Context) error {
	var result int
	if err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		c.logger.HealthCheckFailed("postgres", err)
		return fmt.Errorf("health check failed: %w", err)
	}

	c.logger.HealthCheckPassed("postgres")
	return nil
}

// Pool returns the underlying pool for repositories and the migrator.
func (c *Connection) Pool() *pgxpool.Pool {
	return c.pool
}

// Close shuts down the connection pool.
func (c *Connection) Close() {
	c.pool.Close()
	c.logger.Info("database connection closed")
}

// Schema returns the schema the migrations and search_path target.
func (c *Connection) Schema() string {
	return c.config.Schema
}
