package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"meter-collector/internal/metering/application/events"
	metering "meter-collector/internal/metering/domain"
	"meter-collector/internal/observability/metrics"
)

const (
	// TriggerSchedule marks passes started by the tick loop.
	TriggerSchedule = "schedule"
	// TriggerManual marks passes started by RunOnce.
	TriggerManual = "manual"
)

// MeterOutcome is the result of polling one meter.
type MeterOutcome struct {
	MeterID      int64  `json:"meter_id"`
	SerialNumber string `json:"serial_number"`
	Persisted    bool   `json:"persisted"`
	Err          error  `json:"-"`
}

// PassReport summarizes one collection pass.
type PassReport struct {
	RunID      string         `json:"run_id"`
	Trigger    string         `json:"trigger"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Outcomes   []MeterOutcome `json:"outcomes"`
}

// Failures returns the outcomes that did not persist.
func (r *PassReport) Failures() []MeterOutcome {
	if r == nil {
		return nil
	}
	var failed []MeterOutcome
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			failed = append(failed, outcome)
		}
	}
	return failed
}

func (e *Engine) runPass(ctx context.Context, trigger string) (*PassReport, error) {
	e.pass.Lock()
	defer e.pass.Unlock()

	report := &PassReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: e.clock.Now(),
	}

	meters, err := e.store.ListMeters(ctx)
	if err != nil {
		report.FinishedAt = e.clock.Now()
		metrics.ObservePass(metrics.ResultError, report.FinishedAt.Sub(report.StartedAt))
		return report, fmt.Errorf("collection: list meters: %w", err)
	}
	e.logger.Printf("event=collection_pass_start run_id=%s trigger=%s meters=%d", report.RunID, trigger, len(meters))

	report.Outcomes = make([]MeterOutcome, len(meters))
	var group errgroup.Group
	group.SetLimit(e.workers)
	for i, meter := range meters {
		report.Outcomes[i] = MeterOutcome{MeterID: meter.MeterID, SerialNumber: meter.SerialNumber}
		if ctx.Err() != nil {
			report.Outcomes[i].Err = ctx.Err()
			continue
		}
		i, meter := i, meter
		group.Go(func() error {
			report.Outcomes[i] = e.collectMeter(ctx, report.RunID, meter)
			return nil
		})
	}
	_ = group.Wait()

	report.FinishedAt = e.clock.Now()
	failed := len(report.Failures())
	result := metrics.ResultSuccess
	switch {
	case ctx.Err() != nil:
		result = metrics.ResultCanceled
	case failed > 0:
		result = metrics.ResultPartial
	}
	metrics.ObservePass(result, report.FinishedAt.Sub(report.StartedAt))

	if ctx.Err() == nil {
		finished := report.FinishedAt
		e.mu.Lock()
		e.state.LastRunAt = &finished
		e.mu.Unlock()
	}

	e.logger.Printf("event=collection_pass_done run_id=%s trigger=%s meters=%d failed=%d duration_ms=%d",
		report.RunID, trigger, len(meters), failed, report.FinishedAt.Sub(report.StartedAt).Milliseconds())

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// collectMeter fetches, persists and publishes one meter. Failures stay inside the outcome.
func (e *Engine) collectMeter(ctx context.Context, runID string, meter metering.MeterIdentity) (outcome MeterOutcome) {
	outcome = MeterOutcome{MeterID: meter.MeterID, SerialNumber: meter.SerialNumber}
	defer func() {
		if r := recover(); r != nil {
			outcome.Persisted = false
			outcome.Err = fmt.Errorf("collection: meter %d panicked: %v", meter.MeterID, r)
			e.logger.Printf("event=collection_tick_panic run_id=%s meter_id=%d panic=%v", runID, meter.MeterID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	fetchStart := time.Now()
	sample, err := e.source.Fetch(ctx, meter.SerialNumber)
	metrics.ObserveFetch(fetchResult(err), time.Since(fetchStart))
	if err != nil {
		outcome.Err = err
		e.logger.Printf("event=meter_fetch_failed run_id=%s meter_id=%d serial=%s err=%v", runID, meter.MeterID, meter.SerialNumber, err)
		return outcome
	}

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}
	if err := e.store.Persist(ctx, meter.MeterID, sample); err != nil {
		metrics.IncPersist(metrics.ResultError)
		outcome.Err = err
		e.logger.Printf("event=meter_persist_failed run_id=%s meter_id=%d serial=%s err=%v", runID, meter.MeterID, meter.SerialNumber, err)
		return outcome
	}
	metrics.IncPersist(metrics.ResultSuccess)
	outcome.Persisted = true

	e.publish(ctx, runID, meter, sample)
	return outcome
}

func (e *Engine) publish(ctx context.Context, runID string, meter metering.MeterIdentity, sample metering.RawMeterSample) {
	if e.publisher == nil {
		return
	}
	event := events.ReadingCollected{
		EventID:      uuid.NewString(),
		RunID:        runID,
		MeterID:      meter.MeterID,
		SerialNumber: meter.SerialNumber,
		Timestamp:    sample.Timestamp,
		GMTTime:      sample.GMTTime,
		Phases:       sample.Phases[:],
		OccurredAt:   e.clock.Now().UTC(),
	}
	if err := e.publisher.PublishReadingCollected(ctx, event); err != nil {
		metrics.IncPublish(metrics.ResultError)
		e.logger.Printf("event=reading_publish_failed run_id=%s meter_id=%d err=%v", runID, meter.MeterID, err)
		return
	}
	metrics.IncPublish(metrics.ResultSuccess)
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, metering.ErrTransport):
		return metrics.ResultTransport
	case errors.Is(err, metering.ErrProtocol):
		return metrics.ResultProtocol
	default:
		return metrics.ResultError
	}
}
