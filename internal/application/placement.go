package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// PlacementService computes monthly placements of shared habits and
// aggregates them into medals.
type PlacementService struct {
	records      domain.RecordRepository
	goals        domain.GoalRepository
	participants domain.ParticipantRepository
	placements   domain.PlacementRepository
	threshold    float64
	fanOut       int
	logger       *logging.Logger
}

// NewPlacementService creates a new PlacementService with the default threshold.
func NewPlacementService(
	records domain.RecordRepository,
	goals domain.GoalRepository,
	participants domain.ParticipantRepository,
	placements domain.PlacementRepository,
	logger *logging.Logger,
) *PlacementService {
	return &PlacementService{
		records:      records,
		goals:        goals,
		participants: participants,
		placements:   placements,
		threshold:    domain.DefaultPlacementThreshold,
		fanOut:       defaultFanOut,
		logger:       logger.WithComponent("placement"),
	}
}

// WithThreshold sets the minimum percentage for a placement.
func (s *PlacementService) WithThreshold(threshold float64) *PlacementService {
	s.threshold = threshold
	return s
}

// WithFanOut sets how many participants are scored concurrently.
func (s *PlacementService) WithFanOut(n int) *PlacementService {
	if n > 0 {
		s.fanOut = n
	}
	return s
}

// ComputeMonthlyPlacements scores every participant of a shared habit over
// month, assigns dense placements and replaces the stored placements of
// that period. re-running a month yields the same rows.
func (s *PlacementService) ComputeMonthlyPlacements(ctx context.Context, sharedHabitID domain.HabitID, month domain.Month) ([]domain.Placement, error) {
	participants, err := s.participants.SharedHabitParticipants(ctx, sharedHabitID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}

	goal, err := s.goals.GoalFor(ctx, domain.SelfRef(sharedHabitID))
	if err != nil {
		return nil, fmt.Errorf("resolving shared goal: %w", err)
	}

	r := month.Range()
	window := domain.RecordsNeeded(goal, r)
	candidates := make([]domain.PlacementCandidate, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, p := range participants {
		g.Go(func() error {
			records, err := s.records.Fetch(gctx, p.HabitID, window)
			if err != nil {
				return fmt.Errorf("fetching records of %s: %w", p.HabitID, err)
			}

			pct, err := domain.NewProgressQuery(goal, records).PercentageForRange(r)
			if err != nil {
				return err
			}
			candidates[i] = domain.PlacementCandidate{ParticipantID: p.AccountID, Percentage: pct}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	domain.SortCandidates(candidates)
	placements, err := domain.AssignPlacements(candidates, month.Key(), s.threshold)
	if err != nil {
		return nil, err
	}

	if err := s.placements.ReplacePlacements(ctx, sharedHabitID, month.Key(), placements); err != nil {
		return nil, fmt.Errorf("saving placements: %w", err)
	}

	s.logger.Info("monthly placements computed",
		"shared_habit_id", sharedHabitID.String(),
		"period", month.Key(),
		"participants", len(participants),
		"placed", len(placements),
	)
	return placements, nil
}

// MonthlyRunOutput summarizes a placement pass over all shared habits.
type MonthlyRunOutput struct {
	Processed int
	Succeeded int
	Failed    int
}

// RunMonthly computes placements of month for every shared habit.
// a failing habit is logged and does not stop the pass.
func (s *PlacementService) RunMonthly(ctx context.Context, month domain.Month) (*MonthlyRunOutput, error) {
	habits, err := s.participants.SharedHabits(ctx)
	if err != nil {
		s.logger.Error("monthly placement run failed: listing shared habits",
			"error", err.Error(),
		)
		return nil, fmt.Errorf("listing shared habits: %w", err)
	}

	output := &MonthlyRunOutput{Processed: len(habits)}
	for _, id := range habits {
		if _, err := s.ComputeMonthlyPlacements(ctx, id, month); err != nil {
			s.logger.Warn("monthly placements failed",
				"shared_habit_id", id.String(),
				"period", month.Key(),
				"error", err.Error(),
			)
			output.Failed++
			continue
		}
		output.Succeeded++
	}

	s.logger.Info("monthly placement run completed",
		"period", month.Key(),
		"processed", output.Processed,
		"succeeded", output.Succeeded,
		"failed", output.Failed,
	)
	return output, nil
}

// MedalsFor aggregates an account's historical placements into medal counts.
func (s *PlacementService) MedalsFor(ctx context.Context, accountID domain.AccountID) ([]domain.MedalCount, error) {
	placements, err := s.placements.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing placements: %w", err)
	}
	return domain.MedalsFor(placements), nil
}
