// Package metrics exposes generation-run instrumentation for Prometheus.
// Every method is safe on a nil *Metrics, so components can run without it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Back-end call kinds.
const (
	CallGenerate = "generate"
	CallRepair   = "repair"
	CallAnswer   = "answer"
)

// Metrics holds the collectors of one process, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	slots           *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	repairs         *prometheus.CounterVec
	validations     *prometheus.CounterVec
	runDuration     prometheus.Histogram
	activeWorkers   prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_backend_calls_total",
			Help: "Text-generation back-end calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datagen_backend_call_duration_seconds",
			Help:    "Latency of text-generation back-end calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_attempts_total",
			Help: "Generation attempts by difficulty and outcome.",
		}, []string{"difficulty", "outcome"}),
		slots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_slots_total",
			Help: "Finished slots by difficulty and terminal status.",
		}, []string{"difficulty", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_cache_lookups_total",
			Help: "Result cache lookups by result (hit or miss).",
		}, []string{"result"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_repairs_total",
			Help: "SQL repair attempts by result (fixed or still_invalid).",
		}, []string{"result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_sql_validations_total",
			Help: "Static SQL validations by result (valid or invalid).",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "datagen_run_duration_seconds",
			Help:    "Wall-clock duration of generation runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datagen_active_workers",
			Help: "Slots currently being generated.",
		}),
	}

	registry.MustRegister(
		m.backendCalls,
		m.backendDuration,
		m.attempts,
		m.slots,
		m.cacheLookups,
		m.repairs,
		m.validations,
		m.runDuration,
		m.activeWorkers,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBackendCall records one back-end call.
func (m *Metrics) ObserveBackendCall(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.backendCalls.WithLabelValues(kind, outcome).Inc()
	m.backendDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveAttempt records the outcome of one generation attempt.
func (m *Metrics) ObserveAttempt(difficulty, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(difficulty, outcome).Inc()
}

// ObserveSlot records a finished slot.
func (m *Metrics) ObserveSlot(difficulty string, accepted bool) {
	if m == nil {
		return
	}
	status := "accepted"
	if !accepted {
		status = "failed"
	}
	m.slots.WithLabelValues(difficulty, status).Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRepair records whether a repair produced valid SQL.
func (m *Metrics) ObserveRepair(fixed bool) {
	if m == nil {
		return
	}
	result := "still_invalid"
	if fixed {
		result = "fixed"
	}
	m.repairs.WithLabelValues(result).Inc()
}

// ObserveValidation records one validator verdict.
func (m *Metrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validations.WithLabelValues(result).Inc()
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// WorkerStarted and WorkerFinished track slots in progress.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}
