package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"

	collectionapp "meter-collector/internal/collection/application"
	collection "meter-collector/internal/collection/domain"
	collectionmemory "meter-collector/internal/collection/infrastructure/memory"
	collectionpostgres "meter-collector/internal/collection/infrastructure/postgres"
	"meter-collector/internal/config"
	metering "meter-collector/internal/metering/domain"
	"meter-collector/internal/metering/infrastructure/iammeter"
	meteringmemory "meter-collector/internal/metering/infrastructure/memory"
	meteringpostgres "meter-collector/internal/metering/infrastructure/postgres"
	"meter-collector/internal/metering/interfaces"
	"meter-collector/internal/observability/metrics"
)

type meterRegistry interface {
	metering.ReadingStore
	EnsureMeter(ctx context.Context, name, serialNumber string) (metering.MeterIdentity, bool, error)
}

// app holds the collaborators shared by serve and collect.
type app struct {
	engine  *collectionapp.Engine
	meters  meterRegistry
	logger  *log.Logger
	closers []func() error
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{logger: logger}

	source, err := iammeter.NewClient(cfg.Vendor.BaseURL, cfg.Vendor.Token,
		iammeter.WithTimeout(cfg.Vendor.Timeout),
		iammeter.WithLocation(cfg.Location),
	)
	if err != nil {
		return nil, err
	}

	var schedules collection.ScheduleRepository
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		metrics.Init(db, logger)
		a.meters = meteringpostgres.NewReadingStore(db)
		schedules = collectionpostgres.NewScheduleRepository(db)
	default:
		metrics.Init(nil, logger)
		a.meters = meteringmemory.NewReadingStore()
		schedules = collectionmemory.NewScheduleRepository()
	}

	var publisher collectionapp.Publisher = interfaces.NewLoggingPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := interfaces.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, kafkaPublisher.Close)
		publisher = kafkaPublisher
		logger.Printf("event=kafka_publisher_enabled brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	engine, err := collectionapp.NewEngine(source, a.meters,
		collectionapp.WithClock(collectionapp.SystemClock(cfg.Location)),
		collectionapp.WithLogger(logger),
		collectionapp.WithWorkers(cfg.Collection.Workers),
		collectionapp.WithScheduleRepository(schedules),
		collectionapp.WithPublisher(publisher),
		collectionapp.WithOperator("meter-collector"),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

// seedMeters registers configured meters that are not stored yet.
func (a *app) seedMeters(ctx context.Context, meters []config.Meter) error {
	for _, meter := range meters {
		identity, created, err := a.meters.EnsureMeter(ctx, meter.Name, meter.SerialNumber)
		if err != nil {
			return fmt.Errorf("seed meter %s: %w", meter.SerialNumber, err)
		}
		if created {
			a.logger.Printf("event=meter_seeded meter_id=%d serial=%s", identity.MeterID, identity.SerialNumber)
		}
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
