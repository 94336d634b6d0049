package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joacominatel/cadence/internal/application"
	"github.com/joacominatel/cadence/internal/infrastructure/api"
	"github.com/joacominatel/cadence/internal/infrastructure/cache"
	"github.com/joacominatel/cadence/internal/infrastructure/config"
	"github.com/joacominatel/cadence/internal/infrastructure/database"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
	"github.com/joacominatel/cadence/internal/infrastructure/metrics"
	"github.com/joacominatel/cadence/internal/infrastructure/postgres"
	"github.com/joacominatel/cadence/internal/infrastructure/worker"
)

// historyEntriesPerProgress sizes the month history lru relative to the
// progress lru; one history entry covers a whole month of one habit.
const historyEntriesPerProgress = 30

// services groups the engine's use cases. the binary drives placements,
// challenge finalization and the leaderboard; progress reads and record
// writes are the library surface for callers embedding the engine in
// process, and no http route exposes them.
type services struct {
	progress    *application.ProgressService
	records     *application.RecordService
	challenges  *application.ChallengeService
	placements  *application.PlacementService
	leaderboard *application.LeaderboardService
}

func main() {
	logger := logging.New()
	logger.Info("cadence starting up")

	if err := run(logger); err != nil {
		logger.Error("application failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *logging.Logger) error {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		return err
	}
	logger = logging.NewWithLevel(logging.ParseLevel(cfg.LogLevel))

	// establish database connection
	conn, err := database.New(cfg.Database, cfg.Scheduler.FanOut, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := database.NewMigrator(conn, logger).Run(ctx); err != nil {
		return err
	}

	if err := conn.HealthCheck(ctx); err != nil {
		return err
	}

	logger.Info("cadence infrastructure ready", "schema", conn.Schema())

	appMetrics := metrics.New()

	// redis is optional unless it backs the progress cache
	var redisClient *cache.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{URL: cfg.Redis.URL}, logger)
		if err != nil {
			logger.Error("failed to create redis client", "error", err.Error())
			return err
		}

		if err := redisClient.Connect(ctx); err != nil {
			if cfg.Cache.Backend == "redis" {
				return err
			}
			logger.Warn("redis connection failed, continuing without leaderboard publishing", "error", err.Error())
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	progressCache, historyCache, err := newCaches(cfg.Cache, redisClient, appMetrics)
	if err != nil {
		return err
	}
	logger.CacheBackendSelected(cfg.Cache.Backend, cfg.Cache.Size)

	svc := newServices(conn, cfg.Scheduler, progressCache, historyCache, redisClient, logger)

	scheduler := worker.NewScheduler(svc.placements, svc.leaderboard, worker.SchedulerConfig{
		PlacementInterval:   cfg.Scheduler.PlacementInterval,
		LeaderboardInterval: cfg.Scheduler.LeaderboardInterval,
	}, logger).
		WithMetrics(appMetrics).
		WithChallengeFinalizer(svc.challenges)

	// initialize ops http server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = ":" + cfg.Server.Port
	server := api.NewServer(serverConfig, logger)

	checks := map[string]api.HealthChecker{"postgres": conn}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	api.RegisterRoutes(server.Echo(), api.RouterConfig{
		HealthChecks: checks,
		Logger:       logger,
		Metrics:      appMetrics,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	scheduler.Start(workerCtx)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server error", "error", err.Error())
		}
	}()

	// wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("cadence shutting down")

	workerCancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err.Error())
		return err
	}

	logger.Info("cadence shutdown complete")
	return nil
}

// newCaches builds the progress and history caches for the configured backend.
func newCaches(cfg config.CacheConfig, redisClient *cache.RedisClient, m *metrics.Metrics) (application.ProgressCache, application.HistoryCache, error) {
	if cfg.Backend == "redis" {
		progress := cache.NewInstrumentedProgressCache(cache.NewRedisProgressCache(redisClient), cfg.Backend, m)
		return progress, cache.NewRedisHistoryCache(redisClient), nil
	}

	progress, err := cache.NewMemoryProgressCache(cfg.Size)
	if err != nil {
		return nil, nil, err
	}
	history, err := cache.NewMemoryHistoryCache(max(1, cfg.Size/historyEntriesPerProgress))
	if err != nil {
		return nil, nil, err
	}
	return cache.NewInstrumentedProgressCache(progress, cfg.Backend, m), history, nil
}

func newServices(
	conn *database.Connection,
	cfg config.SchedulerConfig,
	progressCache application.ProgressCache,
	historyCache application.HistoryCache,
	redisClient *cache.RedisClient,
	logger *logging.Logger,
) services {
	pool := conn.Pool()
	recordRepo := postgres.NewRecordRepository(pool)
	goalRepo := postgres.NewGoalRepository(pool)
	participantRepo := postgres.NewParticipantRepository(pool)
	placementRepo := postgres.NewPlacementRepository(pool)
	resultRepo := postgres.NewChallengeResultRepository(pool)
	uow := postgres.NewUnitOfWork(pool)

	progress := application.NewProgressService(recordRepo, goalRepo, logger).
		WithCache(progressCache).
		WithHistoryCache(historyCache)

	leaderboard := application.NewLeaderboardService(resultRepo, logger)
	if redisClient != nil {
		leaderboard = leaderboard.WithPublisher(redisClient)
	}

	return services{
		progress: progress,
		records:  application.NewRecordService(recordRepo, participantRepo, progress, uow, logger),
		challenges: application.NewChallengeService(recordRepo, goalRepo, participantRepo, resultRepo, logger).
			WithFanOut(cfg.FanOut),
		placements: application.NewPlacementService(recordRepo, goalRepo, participantRepo, placementRepo, logger).
			WithThreshold(cfg.PlacementThreshold).
			WithFanOut(cfg.FanOut),
		leaderboard: leaderboard,
	}
}
