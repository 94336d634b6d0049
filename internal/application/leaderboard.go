package application

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// LeaderboardPublisher pushes leaderboard scores to an external store.
// allows the service to remain decoupled from redis specifics.
type LeaderboardPublisher interface {
	PublishLeaderboard(ctx context.Context, entries []domain.LeaderboardEntry) error
}

// LeaderboardService serves the challenge leaderboard. the result is cached
// for one calendar day and recomputed on the first call of a new day.
type LeaderboardService struct {
	results      domain.ChallengeResultRepository
	publisher    LeaderboardPublisher
	timeProvider TimeProvider
	logger       *logging.Logger

	mu      sync.Mutex
	day     domain.EpochDay
	entries []domain.LeaderboardEntry
	loaded  bool
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(results domain.ChallengeResultRepository, logger *logging.Logger) *LeaderboardService {
	return &LeaderboardService{
		results:      results,
		timeProvider: RealTime,
		logger:       logger.WithComponent("leaderboard"),
	}
}

// WithPublisher sets the leaderboard publisher (redis sorted set).
// when set, every recomputation is also published.
func (s *LeaderboardService) WithPublisher(p LeaderboardPublisher) *LeaderboardService {
	s.publisher = p
	return s
}

// WithTimeProvider sets a custom time provider for testing.
func (s *LeaderboardService) WithTimeProvider(tp TimeProvider) *LeaderboardService {
	s.timeProvider = tp
	return s
}

// Leaderboard returns accounts ordered by placement points, best first.
func (s *LeaderboardService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.timeProvider.today()
	if s.loaded && s.day == today {
		return slices.Clone(s.entries), nil
	}

	if err := s.refreshLocked(ctx, today); err != nil {
		return nil, err
	}
	return slices.Clone(s.entries), nil
}

// Refresh recomputes the leaderboard regardless of the cached day.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx, s.timeProvider.today())
}

func (s *LeaderboardService) refreshLocked(ctx context.Context, today domain.EpochDay) error {
	results, err := s.results.ListResults(ctx)
	if err != nil {
		s.logger.Error("leaderboard refresh failed",
			"error", err.Error(),
		)
		return fmt.Errorf("listing challenge results: %w", err)
	}

	s.entries = domain.LeaderboardScores(results)
	s.day = today
	s.loaded = true

	// best-effort, postgres is the source of truth
	if s.publisher != nil {
		if err := s.publisher.PublishLeaderboard(ctx, s.entries); err != nil {
			s.logger.Warn("leaderboard publish failed",
				"entries", len(s.entries),
				"error", err.Error(),
			)
		}
	}

	s.logger.Info("leaderboard refreshed",
		"day", today.String(),
		"entries", len(s.entries),
		"publisher_enabled", s.publisher != nil,
	)
	return nil
}
