package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"meter-collector/internal/metering/application/events"
)

// DefaultReadingsTopic is used when no topic is configured.
const DefaultReadingsTopic = "meter.readings.collected"

// writeBatchTimeout caps how long a synchronous write waits for a batch to fill.
const writeBatchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes reading collected events, keyed by meter serial number.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher constructs a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers")
	}
	if topic == "" {
		topic = DefaultReadingsTopic
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: writeBatchTimeout,
	}}, nil
}

// PublishReadingCollected writes one message per event.
func (p *KafkaPublisher) PublishReadingCollected(ctx context.Context, event events.ReadingCollected) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka publisher: nil writer")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SerialNumber),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "run_id", Value: []byte(event.RunID)},
		},
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
