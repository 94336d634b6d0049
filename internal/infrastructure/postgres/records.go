package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/cadence/internal/domain"
)

// RecordRepository implements domain.RecordRepository using Postgres.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Fetch returns the records of a habit inside r.
// duplicates are returned as stored; the series keeps the earliest one.
func (r *RecordRepository) Fetch(ctx context.Context, habitID domain.HabitID, rng domain.DateRange) (domain.RecordSeries, error) {
	const query = `
		SELECT day, value, created_at
		FROM records
		WHERE habit_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day, created_at
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, habitID.UUID(), rng.Start.Time(), rng.End.Time())
	if err != nil {
		return domain.RecordSeries{}, fmt.Errorf("querying records: %w", err)
	}
	return scanRecords(rows)
}

// FetchSince returns every record of a habit on or after day.
func (r *RecordRepository) FetchSince(ctx context.Context, habitID domain.HabitID, day domain.EpochDay) (domain.RecordSeries, error) {
	const query = `
		SELECT day, value, created_at
		FROM records
		WHERE habit_id = $1 AND day >= $2
		ORDER BY day, created_at
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, habitID.UUID(), day.Time())
	if err != nil {
		return domain.RecordSeries{}, fmt.Errorf("querying records: %w", err)
	}
	return scanRecords(rows)
}

// Upsert stores the value of a habit for one day.
// any existing rows for that day, duplicates included, are replaced by one.
func (r *RecordRepository) Upsert(ctx context.Context, habitID domain.HabitID, day domain.EpochDay, value float64) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM records WHERE habit_id = $1 AND day = $2`,
			habitID.UUID(), day.Time(),
		); err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO records (habit_id, day, value) VALUES ($1, $2, $3)`,
			habitID.UUID(), day.Time(), value,
		); err != nil {
			return fmt.Errorf("inserting record: %w", err)
		}
		return nil
	})
}

// Delete removes the records of a habit for one day.
func (r *RecordRepository) Delete(ctx context.Context, habitID domain.HabitID, day domain.EpochDay) error {
	const query = `DELETE FROM records WHERE habit_id = $1 AND day = $2`

	if _, err := GetQuerier(ctx, r.pool).Exec(ctx, query, habitID.UUID(), day.Time()); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

func scanRecords(rows pgx.Rows) (domain.RecordSeries, error) {
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			day       time.Time
			value     float64
			createdAt time.Time
		)
		if err := rows.Scan(&day, &value, &createdAt); err != nil {
			return domain.RecordSeries{}, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, domain.Record{
			Day:       domain.EpochDayFromTime(day),
			Value:     value,
			CreatedAt: createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		return domain.RecordSeries{}, fmt.Errorf("iterating records: %w", err)
	}
	return domain.NewRecordSeries(records), nil
}
