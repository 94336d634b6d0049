package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/cadence/internal/domain"
)

// GoalRepository implements domain.GoalRepository using Postgres.
type GoalRepository struct {
	pool *pgxpool.Pool
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(pool *pgxpool.Pool) *GoalRepository {
	return &GoalRepository{pool: pool}
}

// GoalFor returns the goal of the habit that configures the ref.
// unknown frequency types are passed through so the calculator can reject
// them itself.
func (r *GoalRepository) GoalFor(ctx context.Context, ref domain.HabitRef) (domain.GoalDefinition, error) {
	const query = `
		SELECT target_days, frequency_type, times_needed, custom_times, custom_days,
		       reachable_daily_value, negative, weekdays
		FROM habits
		WHERE id = $1
	`

	var (
		goal      domain.GoalDefinition
		frequency string
		weekdays  int16
	)

	err := GetQuerier(ctx, r.pool).QueryRow(ctx, query, ref.GoalHabit().UUID()).Scan(
		&goal.TargetDays,
		&frequency,
		&goal.TimesNeeded,
		&goal.CustomTimes,
		&goal.CustomDays,
		&goal.ReachableDailyValue,
		&goal.Negative,
		&weekdays,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GoalDefinition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.GoalDefinition{}, fmt.Errorf("scanning goal: %w", err)
	}

	goal.Frequency = storedFrequency(frequency)
	goal.Weekdays = domain.WeekdaySet(weekdays)
	return goal, nil
}

// storedFrequency normalizes the case and padding of a stored frequency type.
func storedFrequency(raw string) domain.FrequencyType {
	return domain.FrequencyType(strings.ToLower(strings.TrimSpace(raw)))
}

// ParticipantRepository implements domain.ParticipantRepository using Postgres.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// SharedHabits returns every habit that has participants.
func (r *ParticipantRepository) SharedHabits(ctx context.Context) ([]domain.HabitID, error) {
	const query = `
		SELECT DISTINCT shared_habit_id
		FROM habits
		WHERE shared_habit_id IS NOT NULL
		ORDER BY shared_habit_id
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying shared habits: %w", err)
	}
	return collectHabitIDs(rows)
}

// SharedHabitParticipants returns the participants of a shared habit.
func (r *ParticipantRepository) SharedHabitParticipants(ctx context.Context, sharedHabitID domain.HabitID) ([]domain.Participant, error) {
	const query = `
		SELECT account_id, id
		FROM habits
		WHERE shared_habit_id = $1
		ORDER BY account_id
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, sharedHabitID.UUID())
	if err != nil {
		return nil, fmt.Errorf("querying shared habit participants: %w", err)
	}
	return scanParticipants(rows)
}

// FindChallenge retrieves a challenge by id.
func (r *ParticipantRepository) FindChallenge(ctx context.Context, id domain.ChallengeID) (domain.Challenge, error) {
	const query = `
		SELECT goal_habit_id, mode, start_day, end_day
		FROM challenges
		WHERE id = $1
	`

	var (
		goalHabit uuid.UUID
		mode      string
		start     time.Time
		end       time.Time
	)

	err := GetQuerier(ctx, r.pool).QueryRow(ctx, query, id.UUID()).Scan(&goalHabit, &mode, &start, &end)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("scanning challenge: %w", err)
	}

	return domain.Challenge{
		ID:   id,
		Mode: domain.ChallengeMode(mode),
		Range: domain.DateRange{
			Start: domain.EpochDayFromTime(start),
			End:   domain.EpochDayFromTime(end),
		},
		GoalHabit: domain.HabitIDFromUUID(goalHabit),
	}, nil
}

// ChallengeParticipants returns the participants of a challenge.
func (r *ParticipantRepository) ChallengeParticipants(ctx context.Context, id domain.ChallengeID) ([]domain.Participant, error) {
	const query = `
		SELECT account_id, habit_id
		FROM challenge_participants
		WHERE challenge_id = $1
		ORDER BY account_id
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, id.UUID())
	if err != nil {
		return nil, fmt.Errorf("querying challenge participants: %w", err)
	}
	return scanParticipants(rows)
}

// PendingChallenges returns the challenges that ended before day and were
// never finalized, or were last finalized while still running.
func (r *ParticipantRepository) PendingChallenges(ctx context.Context, day domain.EpochDay) ([]domain.ChallengeID, error) {
	const query = `
		SELECT id
		FROM challenges
		WHERE end_day < $1
		  AND (finalized_at IS NULL OR (finalized_at AT TIME ZONE 'UTC')::date <= end_day)
		ORDER BY end_day, id
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, day.Time())
	if err != nil {
		return nil, fmt.Errorf("querying pending challenges: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning challenge ids: %w", err)
	}

	out := make([]domain.ChallengeID, len(ids))
	for i, id := range ids {
		out[i] = domain.ChallengeIDFromUUID(id)
	}
	return out, nil
}

// LinkedGoalHabits returns the habits whose goal scores habitID's records:
// the shared habit it belongs to and the goal habit of every challenge it
// takes part in.
func (r *ParticipantRepository) LinkedGoalHabits(ctx context.Context, habitID domain.HabitID) ([]domain.HabitID, error) {
	const query = `
		SELECT shared_habit_id FROM habits
		WHERE id = $1 AND shared_habit_id IS NOT NULL AND shared_habit_id <> $1
		UNION
		SELECT c.goal_habit_id
		FROM challenge_participants cp
		JOIN challenges c ON c.id = cp.challenge_id
		WHERE cp.habit_id = $1 AND c.goal_habit_id <> $1
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, habitID.UUID())
	if err != nil {
		return nil, fmt.Errorf("querying linked goal habits: %w", err)
	}
	return collectHabitIDs(rows)
}

func collectHabitIDs(rows pgx.Rows) ([]domain.HabitID, error) {
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning habit ids: %w", err)
	}

	out := make([]domain.HabitID, len(ids))
	for i, id := range ids {
		out[i] = domain.HabitIDFromUUID(id)
	}
	return out, nil
}

func scanParticipants(rows pgx.Rows) ([]domain.Participant, error) {
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var accountID, habitID uuid.UUID
		if err := rows.Scan(&accountID, &habitID); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, domain.Participant{
			AccountID: domain.AccountIDFromUUID(accountID),
			HabitID:   domain.HabitIDFromUUID(habitID),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return participants, nil
}
