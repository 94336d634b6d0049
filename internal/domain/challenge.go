package domain

import "errors"

// Participant links an account to the habit holding its own records
// inside a shared habit or challenge.
type Participant struct {
	AccountID AccountID
	HabitID   HabitID
}

// Challenge is a time-boxed competition over one goal definition.
// every participant's records are scored against GoalHabit's goal.
type Challenge struct {
	ID        ChallengeID
	Mode      ChallengeMode
	Range     DateRange
	GoalHabit HabitID
}

var (
	ErrChallengeRangeInvalid = errors.New("challenge range end is before its start")
	ErrChallengeGoalEmpty    = errors.New("challenge must reference a goal habit")
)

// Validate checks the challenge can be scored.
func (c Challenge) Validate() error {
	if !c.Range.Valid() {
		return ErrChallengeRangeInvalid
	}
	if c.GoalHabit.IsZero() {
		return ErrChallengeGoalEmpty
	}
	if _, err := ParseChallengeMode(c.Mode.String()); err != nil {
		return err
	}
	return nil
}

// RefFor returns the ref that scores a participant against the challenge goal.
func (c Challenge) RefFor(p Participant) HabitRef {
	return HabitRef{Goal: c.GoalHabit, Value: p.HabitID}
}
