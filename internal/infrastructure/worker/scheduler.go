package worker

import (
	"context"
	"sync"
	"time"

	"github.com/joacominatel/cadence/internal/application"
	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
	"github.com/joacominatel/cadence/internal/infrastructure/metrics"
)

const (
	placementJob    = "monthly_placements"
	leaderboardJob  = "leaderboard_refresh"
	finalizationJob = "challenge_finalization"
)

// PlacementRunner computes the placements of every shared habit for a month.
type PlacementRunner interface {
	RunMonthly(ctx context.Context, month domain.Month) (*application.MonthlyRunOutput, error)
}

// LeaderboardRefresher returns the leaderboard, recomputing it once per day.
type LeaderboardRefresher interface {
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// ChallengeFinalizer stores the results of every challenge that has ended.
type ChallengeFinalizer interface {
	FinalizeEnded(ctx context.Context, today domain.EpochDay) (*application.FinalizeRunOutput, error)
}

// SchedulerConfig holds the check intervals of the background jobs.
type SchedulerConfig struct {
	// PlacementInterval is how often the scheduler checks for a new month
	// and for challenges that have ended.
	PlacementInterval time.Duration

	// LeaderboardInterval is how often the scheduler checks for a new day.
	LeaderboardInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PlacementInterval:   time.Hour,
		LeaderboardInterval: 10 * time.Minute,
	}
}

// Scheduler runs the placement, finalization and leaderboard jobs on tickers.
// the intervals only bound how late a job notices a new month or day;
// each job does its real work at most once per period.
type Scheduler struct {
	placements   PlacementRunner
	leaderboard  LeaderboardRefresher
	finalizer    ChallengeFinalizer
	config       SchedulerConfig
	timeProvider application.TimeProvider
	metrics      *metrics.Metrics
	logger       *logging.Logger

	mu          sync.Mutex
	placedMonth domain.Month
	hasPlaced   bool

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler.
func NewScheduler(
	placements PlacementRunner,
	leaderboard LeaderboardRefresher,
	config SchedulerConfig,
	logger *logging.Logger,
) *Scheduler {
	return &Scheduler{
		placements:   placements,
		leaderboard:  leaderboard,
		config:       config,
		timeProvider: application.RealTime,
		logger:       logger.WithComponent("scheduler"),
	}
}

// WithMetrics records job durations.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// WithChallengeFinalizer finalizes ended challenges on the placement interval,
// so the leaderboard picks up their results.
func (s *Scheduler) WithChallengeFinalizer(f ChallengeFinalizer) *Scheduler {
	s.finalizer = f
	return s
}

// WithTimeProvider sets a custom time provider (useful for testing).
func (s *Scheduler) WithTimeProvider(tp application.TimeProvider) *Scheduler {
	s.timeProvider = tp
	return s
}

// Start launches one goroutine per job. every job runs once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(ctx, placementJob, s.config.PlacementInterval, s.CheckPlacements)
	go s.loop(ctx, leaderboardJob, s.config.LeaderboardInterval, s.CheckLeaderboard)

	if s.finalizer != nil {
		s.wg.Add(1)
		go s.loop(ctx, finalizationJob, s.config.PlacementInterval, s.CheckChallenges)
	}
}

// Stop cancels both jobs and waits for a running check to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) loop(ctx context.Context, job string, interval time.Duration, check func(context.Context)) {
	defer s.wg.Done()

	s.logger.JobStarted(job, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// run immediately on startup
	check(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("job stopping", "job", job)
			return
		case <-ticker.C:
			check(ctx)
		}
	}
}

// CheckPlacements ranks the previous month once the calendar has moved
// into a new month. a failed run is retried on the next check.
func (s *Scheduler) CheckPlacements(ctx context.Context) {
	current := domain.MonthOf(s.timeProvider().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasPlaced && s.placedMonth == current {
		return
	}

	target := current.Previous()
	start := time.Now()
	output, err := s.placements.RunMonthly(ctx, target)
	duration := time.Since(start)

	if err != nil {
		s.logger.JobFailed(placementJob, err)
		if s.metrics != nil {
			s.metrics.RecordPlacementJob(duration.Seconds(), 0, 0)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPlacementJob(duration.Seconds(), output.Succeeded, output.Failed)
	}
	s.logger.JobFinished(placementJob, duration)

	s.placedMonth = current
	s.hasPlaced = true
}

// CheckChallenges finalizes the challenges that ended before today. failed
// challenges stay pending and are retried on the next check.
func (s *Scheduler) CheckChallenges(ctx context.Context) {
	today := domain.EpochDayFromTime(s.timeProvider().UTC())

	start := time.Now()
	output, err := s.finalizer.FinalizeEnded(ctx, today)
	duration := time.Since(start)

	if err != nil {
		s.logger.JobFailed(finalizationJob, err)
		return
	}

	s.logger.JobFinished(finalizationJob, duration)
	if output.Processed > 0 {
		s.logger.Info("challenges finalized",
			"processed", output.Processed,
			"succeeded", output.Succeeded,
			"failed", output.Failed,
		)
	}
}

// CheckLeaderboard asks for the leaderboard; the service recomputes and
// publishes it on the first call of a new day.
func (s *Scheduler) CheckLeaderboard(ctx context.Context) {
	start := time.Now()
	entries, err := s.leaderboard.Leaderboard(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.JobFailed(leaderboardJob, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordLeaderboardRefresh(duration.Seconds())
	}
	s.logger.Debug("leaderboard checked",
		"entries", len(entries),
		"duration_ms", duration.Milliseconds(),
	)
}
