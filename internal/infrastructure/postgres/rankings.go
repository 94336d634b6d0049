package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/cadence/internal/domain"
)

// PlacementRepository implements domain.PlacementRepository using Postgres.
type PlacementRepository struct {
	pool *pgxpool.Pool
}

// NewPlacementRepository creates a new PlacementRepository.
func NewPlacementRepository(pool *pgxpool.Pool) *PlacementRepository {
	return &PlacementRepository{pool: pool}
}

// ReplacePlacements overwrites the placements of a habit for one period.
// uses COPY for the insert, one period rarely has more than a few hundred rows.
func (r *PlacementRepository) ReplacePlacements(ctx context.Context, sharedHabitID domain.HabitID, periodKey string, placements []domain.Placement) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM placements WHERE shared_habit_id = $1 AND period_key = $2`,
			sharedHabitID.UUID(), periodKey,
		); err != nil {
			return fmt.Errorf("clearing placements: %w", err)
		}

		if len(placements) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"placements"},
			[]string{"shared_habit_id", "period_key", "account_id", "percentage", "rank"},
			pgx.CopyFromSlice(len(placements), func(i int) ([]any, error) {
				p := placements[i]
				return []any{
					sharedHabitID.UUID(),
					periodKey,
					p.ParticipantID.UUID(),
					p.Percentage,
					p.Rank,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying placements: %w", err)
		}
		return nil
	})
}

// ListByAccount returns every placement an account earned, newest period first.
func (r *PlacementRepository) ListByAccount(ctx context.Context, accountID domain.AccountID) ([]domain.Placement, error) {
	const query = `
		SELECT period_key, percentage, rank
		FROM placements
		WHERE account_id = $1
		ORDER BY period_key DESC, shared_habit_id
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, accountID.UUID())
	if err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	defer rows.Close()

	var placements []domain.Placement
	for rows.Next() {
		p := domain.Placement{ParticipantID: accountID}
		if err := rows.Scan(&p.PeriodKey, &p.Percentage, &p.Rank); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		placements = append(placements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating placements: %w", err)
	}
	return placements, nil
}

// ChallengeResultRepository implements domain.ChallengeResultRepository using Postgres.
type ChallengeResultRepository struct {
	pool *pgxpool.Pool
}

// NewChallengeResultRepository creates a new ChallengeResultRepository.
func NewChallengeResultRepository(pool *pgxpool.Pool) *ChallengeResultRepository {
	return &ChallengeResultRepository{pool: pool}
}

// ReplaceResults overwrites the results of one challenge and stamps the
// challenge as finalized.
func (r *ChallengeResultRepository) ReplaceResults(ctx context.Context, challengeID domain.ChallengeID, results []domain.ChallengeResult) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM challenge_results WHERE challenge_id = $1`,
			challengeID.UUID(),
		); err != nil {
			return fmt.Errorf("clearing challenge results: %w", err)
		}

		batch := &pgx.Batch{}
		for _, res := range results {
			batch.Queue(
				`INSERT INTO challenge_results (challenge_id, account_id, placement) VALUES ($1, $2, $3)`,
				challengeID.UUID(), res.AccountID.UUID(), res.Placement,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting challenge results: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE challenges SET finalized_at = NOW() WHERE id = $1`,
			challengeID.UUID(),
		); err != nil {
			return fmt.Errorf("marking challenge finalized: %w", err)
		}
		return nil
	})
}

// ListResults returns every stored challenge result.
func (r *ChallengeResultRepository) ListResults(ctx context.Context) ([]domain.ChallengeResult, error) {
	const query = `
		SELECT challenge_id, account_id, placement
		FROM challenge_results
		ORDER BY challenge_id, placement
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying challenge results: %w", err)
	}
	defer rows.Close()

	var results []domain.ChallengeResult
	for rows.Next() {
		var (
			challengeID uuid.UUID
			accountID   uuid.UUID
			placement   int
		)
		if err := rows.Scan(&challengeID, &accountID, &placement); err != nil {
			return nil, fmt.Errorf("scanning challenge result: %w", err)
		}
		results = append(results, domain.ChallengeResult{
			ChallengeID: domain.ChallengeIDFromUUID(challengeID),
			AccountID:   domain.AccountIDFromUUID(accountID),
			Placement:   placement,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating challenge results: %w", err)
	}
	return results, nil
}
