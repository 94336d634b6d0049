package domain

import "context"

// RecordRepository reads and writes the records of a habit.
type RecordRepository interface {
	// Fetch returns the records of a habit inside r.
	Fetch(ctx context.Context, habitID HabitID, r DateRange) (RecordSeries, error)

	// FetchSince returns every record of a habit on or after day.
	FetchSince(ctx context.Context, habitID HabitID, day EpochDay) (RecordSeries, error)

	// Upsert stores the value of a habit for one day.
	Upsert(ctx context.Context, habitID HabitID, day EpochDay, value float64) error

	// Delete removes the records of a habit for one day.
	Delete(ctx context.Context, habitID HabitID, day EpochDay) error
}

// GoalRepository resolves goal definitions from the habit store.
type GoalRepository interface {
	// GoalFor returns the goal of the habit that configures the ref.
	GoalFor(ctx context.Context, ref HabitRef) (GoalDefinition, error)
}

// ParticipantRepository lists who takes part in shared habits and challenges.
type ParticipantRepository interface {
	// SharedHabits returns every habit that has participants.
	SharedHabits(ctx context.Context) ([]HabitID, error)

	// SharedHabitParticipants returns the participants of a shared habit.
	SharedHabitParticipants(ctx context.Context, sharedHabitID HabitID) ([]Participant, error)

	// FindChallenge retrieves a challenge by id.
	FindChallenge(ctx context.Context, id ChallengeID) (Challenge, error)

	// ChallengeParticipants returns the participants of a challenge.
	ChallengeParticipants(ctx context.Context, id ChallengeID) ([]Participant, error)

	// PendingChallenges returns the challenges that ended before day and
	// have no results from a run after their last day.
	PendingChallenges(ctx context.Context, day EpochDay) ([]ChallengeID, error)

	// LinkedGoalHabits returns the shared habits whose goal scores habitID's
	// records. the habit itself is not included.
	LinkedGoalHabits(ctx context.Context, habitID HabitID) ([]HabitID, error)
}

// PlacementRepository persists monthly placement snapshots.
type PlacementRepository interface {
	// ReplacePlacements overwrites the placements of a habit for one period.
	// re-running a period is safe.
	ReplacePlacements(ctx context.Context, sharedHabitID HabitID, periodKey string, placements []Placement) error

	// ListByAccount returns every placement an account earned.
	ListByAccount(ctx context.Context, accountID AccountID) ([]Placement, error)
}

// ChallengeResultRepository persists final challenge placements.
type ChallengeResultRepository interface {
	// ReplaceResults overwrites the results of one challenge.
	ReplaceResults(ctx context.Context, challengeID ChallengeID, results []ChallengeResult) error

	// ListResults returns every stored challenge result.
	ListResults(ctx context.Context) ([]ChallengeResult, error)
}
