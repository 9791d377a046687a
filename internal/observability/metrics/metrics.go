package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "collector_"

	resultSuccess   = "success"
	resultError     = "error"
	resultTransport = "transport"
	resultProtocol  = "protocol"
	resultCanceled  = "canceled"
	resultPartial   = "partial"
)

var (
	registerOnce sync.Once

	fetchTotal   *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec

	persistTotal *prometheus.CounterVec

	publishTotal *prometheus.CounterVec

	passTotal   *prometheus.CounterVec
	passLatency *prometheus.HistogramVec

	ticksSkipped  prometheus.Counter
	tickPanics    prometheus.Counter
	engineRunning prometheus.Gauge
)

// Init registers collector metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		fetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "meter_fetch_total",
				Help: "Total vendor fetches by result",
			},
			[]string{"result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "meter_fetch_latency_seconds",
				Help:    "Vendor fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		persistTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_persist_total",
				Help: "Total reading persists by result",
			},
			[]string{"result"},
		)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_publish_total",
				Help: "Total reading events published by result",
			},
			[]string{"result"},
		)

		passTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pass_total",
				Help: "Total collection passes by result",
			},
			[]string{"result"},
		)
		passLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pass_latency_seconds",
				Help:    "Collection pass latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"result"},
		)

		ticksSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_skipped_total",
				Help: "Ticks skipped outside the collection window",
			},
		)
		tickPanics = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "tick_panics_total",
				Help: "Recovered panics inside collection ticks",
			},
		)
		engineRunning = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "engine_running",
				Help: "1 while the scheduled collection loop is active",
			},
		)

		prometheus.MustRegister(
			fetchTotal,
			fetchLatency,
			persistTotal,
			publishTotal,
			passTotal,
			passLatency,
			ticksSkipped,
			tickPanics,
			engineRunning,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveFetch records vendor fetch duration and result.
func ObserveFetch(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if fetchTotal != nil {
		fetchTotal.WithLabelValues(result).Inc()
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPersist increments the persist counter.
func IncPersist(result string) {
	if result == "" {
		result = resultSuccess
	}
	if persistTotal != nil {
		persistTotal.WithLabelValues(result).Inc()
	}
}

// IncPublish increments the reading event counter.
func IncPublish(result string) {
	if result == "" {
		result = resultSuccess
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(result).Inc()
	}
}

// ObservePass records collection pass duration and result.
func ObservePass(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if passTotal != nil {
		passTotal.WithLabelValues(result).Inc()
	}
	if passLatency != nil {
		passLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncTickSkipped counts a tick that fell outside the window.
func IncTickSkipped() {
	if ticksSkipped != nil {
		ticksSkipped.Inc()
	}
}

// IncTickPanic counts a recovered tick panic.
func IncTickPanic() {
	if tickPanics != nil {
		tickPanics.Inc()
	}
}

// SetEngineRunning flips the running gauge.
func SetEngineRunning(running bool) {
	if engineRunning == nil {
		return
	}
	if running {
		engineRunning.Set(1)
		return
	}
	engineRunning.Set(0)
}

// Exported constants for callers.
const (
	ResultSuccess   = resultSuccess
	ResultError     = resultError
	ResultTransport = resultTransport
	ResultProtocol  = resultProtocol
	ResultCanceled  = resultCanceled
	ResultPartial   = resultPartial
)
