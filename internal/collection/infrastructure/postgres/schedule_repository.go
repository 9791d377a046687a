package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	collection "meter-collector/internal/collection/domain"
)

const defaultSchedulesTable = "data_collection_schedules"

// ScheduleRepository is a Postgres implementation of collection.ScheduleRepository.
type ScheduleRepository struct {
	db    *sql.DB
	table string
}

// NewScheduleRepository constructs a repository with default table name.
func NewScheduleRepository(db *sql.DB, opts ...ScheduleOption) *ScheduleRepository {
	repo := &ScheduleRepository{db: db, table: defaultSchedulesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ScheduleOption configures the repository.
type ScheduleOption func(*ScheduleRepository)

// WithScheduleTable overrides the default table name.
func WithScheduleTable(table string) ScheduleOption {
	return func(repo *ScheduleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Activate deactivates every active schedule and inserts cfg as the active one.
func (r *ScheduleRepository) Activate(ctx context.Context, cfg collection.ScheduleConfig, createdBy string) error {
	if r == nil || r.db == nil {
		return errors.New("schedule repo: nil db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	deactivate := fmt.Sprintf(`UPDATE %s SET is_active = FALSE WHERE is_active`, r.table)
	if _, err := tx.ExecContext(ctx, deactivate); err != nil {
		_ = tx.Rollback()
		return err
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (start_time, end_time, interval_seconds, is_active, created_by, created_at)
VALUES ($1, $2, $3, TRUE, $4, $5)`, r.table)
	if _, err := tx.ExecContext(ctx, insert, cfg.StartTime.String(), cfg.EndTime.String(), cfg.IntervalSeconds, createdBy, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Deactivate marks the active schedule inactive.
func (r *ScheduleRepository) Deactivate(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("schedule repo: nil db")
	}
	query := fmt.Sprintf(`UPDATE %s SET is_active = FALSE WHERE is_active`, r.table)
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// LoadActive returns the most recent active schedule, or nil.
func (r *ScheduleRepository) LoadActive(ctx context.Context) (*collection.ScheduleConfig, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("schedule repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT start_time, end_time, interval_seconds
FROM %s
WHERE is_active
ORDER BY created_at DESC
LIMIT 1`, r.table)

	var start, end string
	var interval int
	if err := r.db.QueryRowContext(ctx, query).Scan(&start, &end, &interval); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := collection.NewScheduleConfig(start, end, interval)
	if err != nil {
		return nil, fmt.Errorf("schedule repo: stored schedule: %w", err)
	}
	return &cfg, nil
}
