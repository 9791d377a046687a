package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	metering "meter-collector/internal/metering/domain"
)

func sampleAt(ts time.Time) metering.RawMeterSample {
	return metering.RawMeterSample{
		SerialNumber: "CD0FF6AB",
		Timestamp:    ts,
		Phases: [3]metering.PhaseReading{
			{Phase: metering.PhaseA, Voltage: 230},
			{Phase: metering.PhaseB, Voltage: 231},
			{Phase: metering.PhaseC, Voltage: 229},
		},
	}
}

func TestEnsureMeterIsIdempotent(t *testing.T) {
	store := NewReadingStore()
	ctx := context.Background()

	first, created, err := store.EnsureMeter(ctx, "Boys Hostel", "D4C3566B")
	if err != nil || !created {
		t.Fatalf("expected created meter, got created=%v err=%v", created, err)
	}
	second, created, err := store.EnsureMeter(ctx, "Boys Hostel (renamed)", "D4C3566B")
	if err != nil || created {
		t.Fatalf("expected existing meter, got created=%v err=%v", created, err)
	}
	if first.MeterID != second.MeterID {
		t.Fatalf("expected same id, got %d and %d", first.MeterID, second.MeterID)
	}
	meters, _ := store.ListMeters(ctx)
	if len(meters) != 1 {
		t.Fatalf("expected 1 meter, got %d", len(meters))
	}
}

func TestPersistIgnoresDuplicateTimestamp(t *testing.T) {
	store := NewReadingStore()
	ctx := context.Background()
	meter, _, _ := store.EnsureMeter(ctx, "Main Transformer", "F51C3384")
	ts := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)

	if err := store.Persist(ctx, meter.MeterID, sampleAt(ts)); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Persist(ctx, meter.MeterID, sampleAt(ts)); err != nil {
		t.Fatalf("persist duplicate: %v", err)
	}
	if err := store.Persist(ctx, meter.MeterID, sampleAt(ts.Add(5*time.Minute))); err != nil {
		t.Fatalf("persist next: %v", err)
	}
	if got := store.Count(); got != 2 {
		t.Fatalf("expected 2 readings, got %d", got)
	}
	readings := store.Readings(meter.MeterID, ts, ts.Add(time.Hour))
	if len(readings) != 2 || !readings[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected readings %+v", readings)
	}
}

func TestPersistUnknownMeter(t *testing.T) {
	store := NewReadingStore()
	err := store.Persist(context.Background(), 42, sampleAt(time.Now()))
	if !errors.Is(err, metering.ErrPersist) {
		t.Fatalf("expected persist failure, got %v", err)
	}
}

func TestPersistInvalidSampleIsPersistFailure(t *testing.T) {
	store := NewReadingStore()
	meter, _, err := store.EnsureMeter(context.Background(), "Main", "CD0FF6AB")
	if err != nil {
		t.Fatalf("ensure meter: %v", err)
	}
	err = store.Persist(context.Background(), meter.MeterID, sampleAt(time.Time{}))
	if !errors.Is(err, metering.ErrPersist) || !errors.Is(err, metering.ErrInvalidSample) {
		t.Fatalf("expected invalid sample persist failure, got %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("invalid sample stored")
	}
}
