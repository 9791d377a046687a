package events

import (
	"time"

	metering "meter-collector/internal/metering/domain"
)

// ReadingCollected is raised after a sample has been persisted.
type ReadingCollected struct {
	EventID      string                  `json:"event_id"`
	RunID        string                  `json:"run_id"`
	MeterID      int64                   `json:"meter_id"`
	SerialNumber string                  `json:"serial_number"`
	Timestamp    time.Time               `json:"ts"`
	GMTTime      string                  `json:"gmt_time,omitempty"`
	Phases       []metering.PhaseReading `json:"phases"`
	OccurredAt   time.Time               `json:"occurred_at"`
}
