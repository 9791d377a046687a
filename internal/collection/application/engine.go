package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	collection "meter-collector/internal/collection/domain"
	"meter-collector/internal/metering/application/events"
	metering "meter-collector/internal/metering/domain"
	"meter-collector/internal/observability/metrics"
)

// Publisher receives reading events after a successful persist.
type Publisher interface {
	PublishReadingCollected(ctx context.Context, event events.ReadingCollected) error
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers bounds how many meters are polled concurrently within a pass.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// WithScheduleRepository persists the active schedule across restarts.
func WithScheduleRepository(repo collection.ScheduleRepository) Option {
	return func(e *Engine) {
		e.schedules = repo
	}
}

// WithPublisher emits ReadingCollected after each persisted sample.
func WithPublisher(publisher Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithOperator sets the created_by value stored with activated schedules.
func WithOperator(operator string) Option {
	return func(e *Engine) {
		if operator != "" {
			e.operator = operator
		}
	}
}

// Engine runs scheduled and on-demand collection passes over every registered meter.
type Engine struct {
	source    metering.MeterSource
	store     metering.ReadingStore
	schedules collection.ScheduleRepository
	publisher Publisher
	clock     Clock
	logger    *log.Logger
	workers   int
	operator  string

	// lifecycle serializes Start, Stop and Shutdown.
	lifecycle sync.Mutex
	// pass allows one collection pass at a time across the loop and RunOnce.
	pass sync.Mutex

	mu     sync.RWMutex
	state  collection.EngineState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine constructs a stopped engine.
func NewEngine(source metering.MeterSource, store metering.ReadingStore, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, errors.New("collection: nil meter source")
	}
	if store == nil {
		return nil, errors.New("collection: nil reading store")
	}
	e := &Engine{
		source:   source,
		store:    store,
		clock:    SystemClock(time.UTC),
		logger:   log.Default(),
		workers:  1,
		operator: "system",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start activates cfg and launches the scheduled loop.
func (e *Engine) Start(ctx context.Context, cfg collection.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.running() {
		return collection.ErrAlreadyRunning
	}
	if e.schedules != nil {
		if err := e.schedules.Activate(ctx, cfg, e.operator); err != nil {
			return fmt.Errorf("collection: activate schedule: %w", err)
		}
	}
	next := e.launch(cfg)
	e.logger.Printf("event=collection_started start=%s end=%s interval_seconds=%d next_run=%s",
		cfg.StartTime, cfg.EndTime, cfg.IntervalSeconds, next.Format(time.RFC3339))
	return nil
}

// Resume restarts the loop from the stored active schedule. It reports whether a loop was launched.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	if e.schedules == nil {
		return false, nil
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.running() {
		return false, collection.ErrAlreadyRunning
	}
	cfg, err := e.schedules.LoadActive(ctx)
	if err != nil {
		return false, fmt.Errorf("collection: load active schedule: %w", err)
	}
	if cfg == nil {
		return false, nil
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	next := e.launch(*cfg)
	e.logger.Printf("event=collection_resumed start=%s end=%s interval_seconds=%d next_run=%s",
		cfg.StartTime, cfg.EndTime, cfg.IntervalSeconds, next.Format(time.RFC3339))
	return true, nil
}

// Stop cancels the loop, waits for it to exit and deactivates the stored schedule.
// The engine is stopped even when deactivation fails; that error is returned wrapped.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.running() {
		return collection.ErrNotRunning
	}
	e.halt()

	var err error
	if e.schedules != nil {
		if derr := e.schedules.Deactivate(ctx); derr != nil {
			err = fmt.Errorf("collection: deactivate schedule: %w", derr)
		}
	}
	e.logger.Printf("event=collection_stopped deactivated=%t", err == nil)
	return err
}

// Shutdown joins the loop without deactivating the stored schedule, so Resume can pick it up later.
func (e *Engine) Shutdown() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.running() {
		return
	}
	e.halt()
	e.logger.Printf("event=collection_stopped deactivated=false reason=shutdown")
}

// RunOnce performs one synchronous pass over every meter. It never changes the schedule or running flag.
func (e *Engine) RunOnce(ctx context.Context) (*PassReport, error) {
	return e.runPass(ctx, TriggerManual)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() collection.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// IsWithinSchedule reports whether now falls inside the active window; nil when stopped.
func (e *Engine) IsWithinSchedule() *bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.state.IsRunning {
		return nil
	}
	within := collection.IsWithinWindow(e.clock.Now(), e.state.ActiveSchedule)
	return &within
}

func (e *Engine) running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.IsRunning
}

// launch must be called with lifecycle held and the engine stopped.
func (e *Engine) launch(cfg collection.ScheduleConfig) time.Time {
	next := collection.ComputeNextRun(e.clock.Now(), &cfg)
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	active := cfg
	e.state.IsRunning = true
	e.state.ActiveSchedule = &active
	e.state.NextRunAt = &next
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	metrics.SetEngineRunning(true)
	go e.loop(loopCtx, cfg, next, done)
	return next
}

// halt must be called with lifecycle held and the engine running.
func (e *Engine) halt() {
	e.mu.RLock()
	cancel, done := e.cancel, e.done
	e.mu.RUnlock()

	cancel()
	<-done

	e.mu.Lock()
	e.state.IsRunning = false
	e.state.NextRunAt = nil
	e.state.ActiveSchedule = nil
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	metrics.SetEngineRunning(false)
}

func (e *Engine) loop(ctx context.Context, cfg collection.ScheduleConfig, next time.Time, done chan struct{}) {
	defer close(done)
	for {
		wait := next.Sub(e.clock.Now())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(wait):
		}
		if ctx.Err() != nil {
			return
		}

		next = e.tick(ctx, &cfg)
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		e.state.NextRunAt = &next
		e.mu.Unlock()
	}
}

// tick runs one scheduled iteration and returns when the next one is due.
func (e *Engine) tick(ctx context.Context, cfg *collection.ScheduleConfig) (next time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncTickPanic()
			e.logger.Printf("event=collection_tick_panic panic=%v", r)
			next = e.nextAfter(cfg)
		}
	}()

	now := e.clock.Now()
	if !collection.IsWithinWindow(now, cfg) {
		next = collection.NextWindowOpening(now, cfg)
		metrics.IncTickSkipped()
		e.logger.Printf("event=collection_tick_skipped now=%s next_run=%s", now.Format(time.RFC3339), next.Format(time.RFC3339))
		return next
	}

	if _, err := e.runPass(ctx, TriggerSchedule); err != nil && ctx.Err() == nil {
		e.logger.Printf("event=collection_pass_failed trigger=%s err=%v", TriggerSchedule, err)
	}
	return e.nextAfter(cfg)
}

func (e *Engine) nextAfter(cfg *collection.ScheduleConfig) time.Time {
	now := e.clock.Now()
	if !collection.IsWithinWindow(now, cfg) {
		return collection.NextWindowOpening(now, cfg)
	}
	return collection.ComputeNextRun(now, cfg)
}
