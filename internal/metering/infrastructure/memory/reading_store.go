package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	metering "meter-collector/internal/metering/domain"
)

// ReadingStore is an in-memory reading store for demo/testing.
type ReadingStore struct {
	mu       sync.RWMutex
	nextID   int64
	meters   map[int64]metering.MeterIdentity
	readings map[readingKey]metering.RawMeterSample
}

type readingKey struct {
	meterID int64
	ts      int64
}

// NewReadingStore constructs an empty store.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{
		meters:   make(map[int64]metering.MeterIdentity),
		readings: make(map[readingKey]metering.RawMeterSample),
	}
}

// EnsureMeter adds a meter unless its serial number is already known.
func (s *ReadingStore) EnsureMeter(ctx context.Context, name, serialNumber string) (metering.MeterIdentity, bool, error) {
	_ = ctx
	if serialNumber == "" {
		return metering.MeterIdentity{}, false, errors.New("reading store: empty serial number")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meter := range s.meters {
		if meter.SerialNumber == serialNumber {
			return meter, false, nil
		}
	}
	s.nextID++
	meter := metering.MeterIdentity{MeterID: s.nextID, Name: name, SerialNumber: serialNumber}
	s.meters[meter.MeterID] = meter
	return meter, true, nil
}

// ListMeters returns meters ordered by id.
func (s *ReadingStore) ListMeters(ctx context.Context) ([]metering.MeterIdentity, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	meters := make([]metering.MeterIdentity, 0, len(s.meters))
	for _, meter := range s.meters {
		meters = append(meters, meter)
	}
	sort.Slice(meters, func(i, j int) bool { return meters[i].MeterID < meters[j].MeterID })
	return meters, nil
}

// Persist stores a sample. A second sample for the same meter and timestamp is ignored.
func (s *ReadingStore) Persist(ctx context.Context, meterID int64, sample metering.RawMeterSample) error {
	_ = ctx
	if err := metering.ValidateSample(meterID, sample); err != nil {
		return errors.Join(metering.ErrPersist, err)
	}
	key := readingKey{meterID: meterID, ts: sample.Timestamp.UnixNano()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meters[meterID]; !ok {
		return errors.Join(metering.ErrPersist, errors.New("reading store: unknown meter"))
	}
	if _, exists := s.readings[key]; exists {
		return nil
	}
	s.readings[key] = sample
	return nil
}

// Readings returns the stored samples of a meter in [start, end), ordered by timestamp.
func (s *ReadingStore) Readings(meterID int64, start, end time.Time) []metering.RawMeterSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []metering.RawMeterSample
	for key, sample := range s.readings {
		if key.meterID != meterID {
			continue
		}
		if sample.Timestamp.Before(start) || !sample.Timestamp.Before(end) {
			continue
		}
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Count returns the number of stored samples.
func (s *ReadingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}
