package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/jackc/pgx/v5/stdlib"

	collection "meter-collector/internal/collection/domain"
)

func mustSchedule(t *testing.T) collection.ScheduleConfig {
	t.Helper()
	cfg, err := collection.NewScheduleConfig("08:00", "18:00", 300)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return cfg
}

func TestActivateReplacesActiveSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE data_collection_schedules SET is_active = FALSE WHERE is_active")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO data_collection_schedules")).
		WithArgs("08:00", "18:00", 300, "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	repo := NewScheduleRepository(db)
	if err := repo.Activate(context.Background(), mustSchedule(t), "admin"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActivateRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE data_collection_schedules")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO data_collection_schedules")).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	repo := NewScheduleRepository(db)
	if err := repo.Activate(context.Background(), mustSchedule(t), "admin"); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActivateRejectsInvalidSchedule(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewScheduleRepository(db)
	cfg := collection.ScheduleConfig{StartTime: collection.NewTimeOfDay(18, 0, 0), EndTime: collection.NewTimeOfDay(8, 0, 0), IntervalSeconds: 60}
	if err := repo.Activate(context.Background(), cfg, ""); !errors.Is(err, collection.ErrConfigInvalid) {
		t.Fatalf("expected invalid schedule, got %v", err)
	}
}

func TestLoadActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time", "interval_seconds"}).AddRow("07:30", "17:45:30", 600))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time", "interval_seconds"}))

	repo := NewScheduleRepository(db)
	cfg, err := repo.LoadActive(context.Background())
	if err != nil {
		t.Fatalf("load active: %v", err)
	}
	if cfg == nil || cfg.StartTime != collection.NewTimeOfDay(7, 30, 0) || cfg.EndTime != collection.NewTimeOfDay(17, 45, 30) || cfg.IntervalSeconds != 600 {
		t.Fatalf("unexpected schedule %+v", cfg)
	}

	cfg, err = repo.LoadActive(context.Background())
	if err != nil || cfg != nil {
		t.Fatalf("expected no active schedule, got %+v err=%v", cfg, err)
	}
}

func TestDeactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE data_collection_schedules SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewScheduleRepository(db)
	if err := repo.Deactivate(context.Background()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestScheduleRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRow(`SELECT to_regclass('public.data_collection_schedules') IS NOT NULL`).Scan(&exists); err != nil || !exists {
		t.Skip("data_collection_schedules missing; run migrations")
	}

	ctx := context.Background()
	repo := NewScheduleRepository(db)
	if err := repo.Activate(ctx, mustSchedule(t), "integration"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	cfg, err := repo.LoadActive(ctx)
	if err != nil || cfg == nil || cfg.IntervalSeconds != 300 {
		t.Fatalf("unexpected active schedule %+v err=%v", cfg, err)
	}
	if err := repo.Deactivate(ctx); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if cfg, err := repo.LoadActive(ctx); err != nil || cfg != nil {
		t.Fatalf("expected no active schedule, got %+v err=%v", cfg, err)
	}
}
