package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// HabitID represents a unique identifier for a habit.
// wrapping uuid to enforce type safety and prevent mixing with other ids.
type HabitID struct {
	value uuid.UUID
}

// NewHabitID creates a new random HabitID.
func NewHabitID() HabitID {
	return HabitID{value: uuid.New()}
}

// ParseHabitID parses a string into a HabitID.
func ParseHabitID(s string) (HabitID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return HabitID{}, fmt.Errorf("invalid habit id: %w", err)
	}
	return HabitID{value: id}, nil
}

// HabitIDFromUUID creates a HabitID from an existing uuid.
func HabitIDFromUUID(id uuid.UUID) HabitID {
	return HabitID{value: id}
}

// String returns the string representation of the HabitID.
func (id HabitID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id HabitID) UUID() uuid.UUID {
	return id.value
}

// IsZero returns true if the HabitID is not set.
func (id HabitID) IsZero() bool {
	return id.value == uuid.Nil
}

// AccountID represents a unique identifier for a participant account.
type AccountID struct {
	value uuid.UUID
}

// NewAccountID creates a new random AccountID.
func NewAccountID() AccountID {
	return AccountID{value: uuid.New()}
}

// ParseAccountID parses a string into an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account id: %w", err)
	}
	return AccountID{value: id}, nil
}

// AccountIDFromUUID creates an AccountID from an existing uuid.
func AccountIDFromUUID(id uuid.UUID) AccountID {
	return AccountID{value: id}
}

// String returns the string representation of the AccountID.
func (id AccountID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id AccountID) UUID() uuid.UUID {
	return id.value
}

// IsZero returns true if the AccountID is not set.
func (id AccountID) IsZero() bool {
	return id.value == uuid.Nil
}

// ChallengeID represents a unique identifier for a challenge.
type ChallengeID struct {
	value uuid.UUID
}

// NewChallengeID creates a new random ChallengeID.
func NewChallengeID() ChallengeID {
	return ChallengeID{value: uuid.New()}
}

// ParseChallengeID parses a string into a ChallengeID.
func ParseChallengeID(s string) (ChallengeID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ChallengeID{}, fmt.Errorf("invalid challenge id: %w", err)
	}
	return ChallengeID{value: id}, nil
}

// ChallengeIDFromUUID creates a ChallengeID from an existing uuid.
func ChallengeIDFromUUID(id uuid.UUID) ChallengeID {
	return ChallengeID{value: id}
}

// String returns the string representation of the ChallengeID.
func (id ChallengeID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id ChallengeID) UUID() uuid.UUID {
	return id.value
}

// HabitRef names the two habits a computation reads from.
// Goal supplies the goal definition, Value supplies the records.
// for a plain habit both point at the same id.
type HabitRef struct {
	Goal  HabitID
	Value HabitID
}

// SelfRef returns a ref where the habit configures itself.
func SelfRef(id HabitID) HabitRef {
	return HabitRef{Goal: id, Value: id}
}

// GoalHabit returns the habit that defines the goal.
// falls back to the value habit when no distinct goal habit is set.
func (r HabitRef) GoalHabit() HabitID {
	if r.Goal.IsZero() {
		return r.Value
	}
	return r.Goal
}

// IsSelf reports whether goal and records come from the same habit.
func (r HabitRef) IsSelf() bool {
	return r.GoalHabit() == r.Value
}

// String returns a stable representation used in cache keys and logs.
func (r HabitRef) String() string {
	if r.IsSelf() {
		return r.Value.String()
	}
	return r.Value.String() + "@" + r.GoalHabit().String()
}
