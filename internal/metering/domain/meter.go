package metering

import (
	"context"
	"fmt"
	"time"
)

// LocalTimeLayout is the vendor layout of a sample's local timestamp.
const LocalTimeLayout = "2006/01/02 15:04:05"

// Phase identifies one of the three measurement channels of a meter.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
)

// Phases lists phases in the order the vendor reports them.
var Phases = [3]Phase{PhaseA, PhaseB, PhaseC}

// MeterIdentity is a provisioned meter. It is never mutated by collection.
type MeterIdentity struct {
	MeterID      int64
	Name         string
	SerialNumber string
}

// PhaseReading holds the six values reported for one phase.
type PhaseReading struct {
	Phase           Phase   `json:"phase"`
	Voltage         float64 `json:"voltage"`
	Current         float64 `json:"current"`
	ActivePower     float64 `json:"active_power"`
	PowerFactor     float64 `json:"power_factor"`
	GridConsumption float64 `json:"grid_consumption"`
	ExportedPower   float64 `json:"exported_power"`
}

// RawMeterSample is one parsed vendor response.
type RawMeterSample struct {
	SerialNumber string
	// LocalTime is the vendor local timestamp as reported, in LocalTimeLayout.
	LocalTime string
	GMTTime   string
	// Timestamp is LocalTime interpreted in the collector's location.
	Timestamp time.Time
	Phases    [3]PhaseReading
}

// Phase returns the reading of phase p.
func (s RawMeterSample) Phase(p Phase) (PhaseReading, bool) {
	for _, reading := range s.Phases {
		if reading.Phase == p {
			return reading, true
		}
	}
	return PhaseReading{}, false
}

// ValidateSample checks that a sample can be stored for meterID.
func ValidateSample(meterID int64, sample RawMeterSample) error {
	if meterID <= 0 {
		return fmt.Errorf("%w: meter id %d", ErrInvalidSample, meterID)
	}
	if sample.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidSample)
	}
	for i, reading := range sample.Phases {
		if reading.Phase != Phases[i] {
			return fmt.Errorf("%w: phase %d is %q", ErrInvalidSample, i, reading.Phase)
		}
	}
	return nil
}

// MeterSource fetches the current sample of a meter.
type MeterSource interface {
	Fetch(ctx context.Context, serialNumber string) (RawMeterSample, error)
}

// ReadingStore lists known meters and persists their samples.
type ReadingStore interface {
	ListMeters(ctx context.Context) ([]MeterIdentity, error)
	// Persist writes all phases of a sample atomically.
	Persist(ctx context.Context, meterID int64, sample RawMeterSample) error
}
