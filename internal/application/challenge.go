package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// defaultFanOut bounds concurrent record fetches per ranking pass.
const defaultFanOut = 8

// ChallengeService scores and finalizes challenges.
type ChallengeService struct {
	records      domain.RecordRepository
	goals        domain.GoalRepository
	participants domain.ParticipantRepository
	results      domain.ChallengeResultRepository
	fanOut       int
	logger       *logging.Logger
}

// NewChallengeService creates a new ChallengeService.
func NewChallengeService(
	records domain.RecordRepository,
	goals domain.GoalRepository,
	participants domain.ParticipantRepository,
	results domain.ChallengeResultRepository,
	logger *logging.Logger,
) *ChallengeService {
	return &ChallengeService{
		records:      records,
		goals:        goals,
		participants: participants,
		results:      results,
		fanOut:       defaultFanOut,
		logger:       logger.WithComponent("challenge"),
	}
}

// WithFanOut sets how many participants are scored concurrently.
func (s *ChallengeService) WithFanOut(n int) *ChallengeService {
	if n > 0 {
		s.fanOut = n
	}
	return s
}

// Rank scores every participant of a challenge against the challenge goal
// and normalizes the scores for the challenge mode. the output follows the
// participant order returned by the repository.
func (s *ChallengeService) Rank(ctx context.Context, id domain.ChallengeID) ([]domain.ParticipantScore, error) {
	challenge, err := s.participants.FindChallenge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("challenge lookup: %w", err)
	}
	if err := challenge.Validate(); err != nil {
		s.logger.Warn("challenge ranking rejected",
			"challenge_id", id.String(),
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	participants, err := s.participants.ChallengeParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing challenge participants: %w", err)
	}

	goal, err := s.goals.GoalFor(ctx, domain.SelfRef(challenge.GoalHabit))
	if err != nil {
		return nil, fmt.Errorf("resolving challenge goal: %w", err)
	}

	window := domain.RecordsNeeded(goal, challenge.Range)
	scores := make([]domain.ParticipantScore, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, p := range participants {
		g.Go(func() error {
			records, err := s.records.Fetch(gctx, p.HabitID, window)
			if err != nil {
				return fmt.Errorf("fetching records of %s: %w", p.HabitID, err)
			}

			score, err := domain.NewProgressQuery(goal, records).
				WithForcedRange(challenge.Range).
				Score(p.AccountID, p.HabitID.String(), challenge.Range)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("challenge ranking failed",
			"challenge_id", id.String(),
			"error", err.Error(),
		)
		return nil, err
	}

	ranked, err := domain.RankChallengeParticipants(challenge.Mode, scores)
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge ranked",
		"challenge_id", id.String(),
		"mode", challenge.Mode.String(),
		"participants", len(ranked),
	)
	return ranked, nil
}

// Finalize ranks a challenge and stores every participant's final placement.
// placements are dense and tie-sharing with no threshold. re-running
// overwrites the previous results.
func (s *ChallengeService) Finalize(ctx context.Context, id domain.ChallengeID) ([]domain.ChallengeResult, error) {
	ranked, err := s.Rank(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.PlacementCandidate, len(ranked))
	for i, score := range ranked {
		candidates[i] = domain.PlacementCandidate{ParticipantID: score.ParticipantID, Percentage: score.Percentage}
	}
	domain.SortCandidates(candidates)

	placements, err := domain.AssignPlacements(candidates, id.String(), 0)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ChallengeResult, len(placements))
	for i, p := range placements {
		results[i] = domain.ChallengeResult{ChallengeID: id, AccountID: p.ParticipantID, Placement: p.Rank}
	}

	if err := s.results.ReplaceResults(ctx, id, results); err != nil {
		s.logger.Error("challenge results save failed",
			"challenge_id", id.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("saving challenge results: %w", err)
	}

	s.logger.Info("challenge finalized",
		"challenge_id", id.String(),
		"results", len(results),
	)
	return results, nil
}

// FinalizeRunOutput summarizes a pass over the challenges that have ended.
type FinalizeRunOutput struct {
	Processed int
	Succeeded int
	Failed    int
}

// FinalizeEnded finalizes every challenge whose last day is before today and
// that has not been finalized since. a failing challenge is logged and is
// picked up again by the next pass.
func (s *ChallengeService) FinalizeEnded(ctx context.Context, today domain.EpochDay) (*FinalizeRunOutput, error) {
	pending, err := s.participants.PendingChallenges(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("listing pending challenges: %w", err)
	}

	output := &FinalizeRunOutput{Processed: len(pending)}
	for _, id := range pending {
		if _, err := s.Finalize(ctx, id); err != nil {
			s.logger.Warn("challenge finalization failed",
				"challenge_id", id.String(),
				"error", err.Error(),
			)
			output.Failed++
			continue
		}
		output.Succeeded++
	}
	return output, nil
}
