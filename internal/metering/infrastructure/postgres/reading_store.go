package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	metering "meter-collector/internal/metering/domain"
)

const (
	defaultMetersTable   = "meters"
	defaultReadingsTable = "meter_readings"
)

// ReadingStore is a Postgres implementation of metering.ReadingStore.
type ReadingStore struct {
	db            *sql.DB
	metersTable   string
	readingsTable string
}

// NewReadingStore constructs a store with default table names.
func NewReadingStore(db *sql.DB, opts ...StoreOption) *ReadingStore {
	store := &ReadingStore{db: db, metersTable: defaultMetersTable, readingsTable: defaultReadingsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// StoreOption configures the store.
type StoreOption func(*ReadingStore)

// WithMetersTable overrides the default meters table name.
func WithMetersTable(table string) StoreOption {
	return func(store *ReadingStore) {
		if table != "" {
			store.metersTable = table
		}
	}
}

// WithReadingsTable overrides the default readings table name.
func WithReadingsTable(table string) StoreOption {
	return func(store *ReadingStore) {
		if table != "" {
			store.readingsTable = table
		}
	}
}

// ListMeters loads all provisioned meters.
func (s *ReadingStore) ListMeters(ctx context.Context) ([]metering.MeterIdentity, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reading store: nil db")
	}

	query := fmt.Sprintf(`
SELECT meter_id, name, serial_number
FROM %s
ORDER BY meter_id ASC`, s.metersTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meters []metering.MeterIdentity
	for rows.Next() {
		var meter metering.MeterIdentity
		if err := rows.Scan(&meter.MeterID, &meter.Name, &meter.SerialNumber); err != nil {
			return nil, err
		}
		meters = append(meters, meter)
	}
	return meters, rows.Err()
}

// EnsureMeter inserts a meter unless its serial number is already known.
func (s *ReadingStore) EnsureMeter(ctx context.Context, name, serialNumber string) (metering.MeterIdentity, bool, error) {
	if s == nil || s.db == nil {
		return metering.MeterIdentity{}, false, errors.New("reading store: nil db")
	}
	if serialNumber == "" {
		return metering.MeterIdentity{}, false, errors.New("reading store: empty serial number")
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (name, serial_number)
VALUES ($1, $2)
ON CONFLICT (serial_number) DO NOTHING
RETURNING meter_id, name, serial_number`, s.metersTable)

	var meter metering.MeterIdentity
	err := s.db.QueryRowContext(ctx, insert, name, serialNumber).Scan(&meter.MeterID, &meter.Name, &meter.SerialNumber)
	if err == nil {
		return meter, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return metering.MeterIdentity{}, false, err
	}

	lookup := fmt.Sprintf(`
SELECT meter_id, name, serial_number
FROM %s
WHERE serial_number = $1
LIMIT 1`, s.metersTable)
	if err := s.db.QueryRowContext(ctx, lookup, serialNumber).Scan(&meter.MeterID, &meter.Name, &meter.SerialNumber); err != nil {
		return metering.MeterIdentity{}, false, err
	}
	return meter, false, nil
}

// Persist writes the three phase rows of a sample in one transaction.
// Rows already stored for the same meter, timestamp and phase are left untouched.
func (s *ReadingStore) Persist(ctx context.Context, meterID int64, sample metering.RawMeterSample) error {
	if s == nil || s.db == nil {
		return errors.New("reading store: nil db")
	}
	if err := metering.ValidateSample(meterID, sample); err != nil {
		return persistError(meterID, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	meter_id,
	ts,
	phase,
	voltage,
	current,
	active_power,
	power_factor,
	grid_consumption,
	exported_power,
	gmt_time
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
ON CONFLICT (meter_id, ts, phase) DO NOTHING`, s.readingsTable)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistError(meterID, err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return persistError(meterID, err)
	}
	defer stmt.Close()

	for _, reading := range sample.Phases {
		if _, err := stmt.ExecContext(
			ctx,
			meterID,
			sample.Timestamp,
			string(reading.Phase),
			reading.Voltage,
			reading.Current,
			reading.ActivePower,
			reading.PowerFactor,
			reading.GridConsumption,
			reading.ExportedPower,
			sample.GMTTime,
		); err != nil {
			_ = tx.Rollback()
			return persistError(meterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistError(meterID, err)
	}
	return nil
}

func persistError(meterID int64, err error) error {
	return fmt.Errorf("%w: meter %d: %w", metering.ErrPersist, meterID, err)
}
