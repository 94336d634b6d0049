package application

import (
	"context"
	"fmt"

	"github.com/joacominatel/cadence/internal/domain"
	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// RecordInvalidator is notified of every record mutation.
// ProgressService implements it.
type RecordInvalidator interface {
	OnRecordChanged(ctx context.Context, ref domain.HabitRef, day domain.EpochDay) error
}

// RecordService is the record write path. every mutation evicts the
// progress of all refs that read the habit inside the same transaction.
type RecordService struct {
	records      domain.RecordRepository
	participants domain.ParticipantRepository
	invalidator  RecordInvalidator
	uow          UnitOfWork
	logger       *logging.Logger
}

// NewRecordService creates a new RecordService.
func NewRecordService(
	records domain.RecordRepository,
	participants domain.ParticipantRepository,
	invalidator RecordInvalidator,
	uow UnitOfWork,
	logger *logging.Logger,
) *RecordService {
	return &RecordService{
		records:      records,
		participants: participants,
		invalidator:  invalidator,
		uow:          uow,
		logger:       logger.WithComponent("record"),
	}
}

// SaveRecord stores the value of a habit for one day.
func (s *RecordService) SaveRecord(ctx context.Context, habitID domain.HabitID, day domain.EpochDay, value float64) error {
	if habitID.IsZero() {
		return fmt.Errorf("%w: habit id is required", domain.ErrInvalidInput)
	}
	if value < 0 {
		s.logger.Warn("record rejected: negative value",
			"habit_id", habitID.String(),
			"day", day.String(),
			"value", value,
		)
		return fmt.Errorf("%w: record value must not be negative", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, habitID, day, "saved", func(ctx context.Context) error {
		return s.records.Upsert(ctx, habitID, day, value)
	})
}

// DeleteRecord removes the record of a habit for one day.
func (s *RecordService) DeleteRecord(ctx context.Context, habitID domain.HabitID, day domain.EpochDay) error {
	if habitID.IsZero() {
		return fmt.Errorf("%w: habit id is required", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, habitID, day, "deleted", func(ctx context.Context) error {
		return s.records.Delete(ctx, habitID, day)
	})
}

func (s *RecordService) mutate(ctx context.Context, habitID domain.HabitID, day domain.EpochDay, outcome string, write func(context.Context) error) error {
	var refs []domain.HabitRef

	err := RunInTransaction(ctx, s.uow, func(txCtx context.Context) error {
		if err := write(txCtx); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}

		var err error
		refs, err = s.refsFor(txCtx, habitID)
		if err != nil {
			return err
		}
		return s.evict(txCtx, refs, day)
	})
	if err != nil {
		s.logger.Error("record mutation failed",
			"habit_id", habitID.String(),
			"day", day.String(),
			"error", err.Error(),
		)
		return err
	}

	// a reader racing the transaction may have cached pre-commit values
	if err := s.evict(ctx, refs, day); err != nil {
		s.logger.Warn("post-commit eviction failed",
			"habit_id", habitID.String(),
			"day", day.String(),
			"error", err.Error(),
		)
	}

	s.logger.Info("record "+outcome,
		"habit_id", habitID.String(),
		"day", day.String(),
		"refs", len(refs),
	)
	return nil
}

// refsFor returns the habit's own ref plus one ref per shared goal it feeds.
func (s *RecordService) refsFor(ctx context.Context, habitID domain.HabitID) ([]domain.HabitRef, error) {
	goals, err := s.participants.LinkedGoalHabits(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("listing linked goals: %w", err)
	}

	refs := make([]domain.HabitRef, 0, len(goals)+1)
	refs = append(refs, domain.SelfRef(habitID))
	for _, g := range goals {
		refs = append(refs, domain.HabitRef{Goal: g, Value: habitID})
	}
	return refs, nil
}

func (s *RecordService) evict(ctx context.Context, refs []domain.HabitRef, day domain.EpochDay) error {
	for _, ref := range refs {
		if err := s.invalidator.OnRecordChanged(ctx, ref, day); err != nil {
			return err
		}
	}
	return nil
}
