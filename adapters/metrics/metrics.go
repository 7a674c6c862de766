// Package metrics provides Prometheus metrics collection for CostGate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for CostGate.
type Collector struct {
	// Ledger metrics
	EntriesRecorded *prometheus.CounterVec
	CostRecordedUSD *prometheus.CounterVec
	SessionResets   prometheus.Counter
	GlobalResets    prometheus.Counter

	// Admission metrics
	ThresholdRejections *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Upstream metrics
	SynthesisDuration prometheus.Histogram
	SynthesisErrors   *prometheus.CounterVec
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		EntriesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "entries_recorded_total",
				Help:      "Total number of cost entries recorded",
			},
			[]string{"service"},
		),
		CostRecordedUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "cost_recorded_usd_total",
				Help:      "Total recorded cost in USD",
			},
			[]string{"service"},
		),
		SessionResets: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "session_resets_total",
				Help:      "Total number of session ledger resets",
			},
		),
		GlobalResets: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "global_resets_total",
				Help:      "Total number of global ledger resets",
			},
		),
		ThresholdRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "threshold_rejections_total",
				Help:      "Total number of billed operations blocked by the session threshold",
			},
			[]string{"service"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "costgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		SynthesisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "costgate",
				Name:      "synthesis_duration_seconds",
				Help:      "Upstream speech synthesis duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		SynthesisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costgate",
				Name:      "synthesis_errors_total",
				Help:      "Total number of upstream synthesis errors",
			},
			[]string{"type"},
		),
	}
}
