package interfaces

import (
	"context"
	"errors"
	"log"
	"time"

	"meter-collector/internal/metering/application/events"
)

// LoggingPublisher logs reading collected events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishReadingCollected logs the event.
func (p *LoggingPublisher) PublishReadingCollected(ctx context.Context, event events.ReadingCollected) error {
	_ = ctx
	if p == nil {
		return errors.New("reading publisher: nil publisher")
	}
	p.logger.Printf("event=reading_collected meter_id=%d serial=%s ts=%s run_id=%s", event.MeterID, event.SerialNumber, event.Timestamp.Format(time.RFC3339), event.RunID)
	return nil
}
