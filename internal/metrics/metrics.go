// Package metrics exposes the engine's error and throughput counters
// through github.com/prometheus/client_golang, grounded on
// _examples/GVCUTV-NRG-CHAMP/services/assessment/internal/observability/
// metrics.go (CounterVec/HistogramVec/GaugeVec registered via
// prometheus.MustRegister), rather than that same monorepo's hand-rolled
// internal/metrics package, which does not use the real library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every counter/histogram the engine records against.
// A single Registry is built at process start and threaded through the
// Builder into the Engine; device clients do not record against it.
type Registry struct {
	ReadErrors    *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec
	PersistErrors *prometheus.CounterVec
	Overruns      *prometheus.CounterVec
	ValuesStored  *prometheus.CounterVec
	PollDuration  *prometheus.HistogramVec
	Attributes    *prometheus.GaugeVec
}

// New registers and returns a Registry against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across test runs.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		ReadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attrengine",
			Name:      "read_errors_total",
			Help:      "Device reads that returned an error, by attribute.",
		}, []string{"attribute"}),

		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attrengine",
			Name:      "decode_errors_total",
			Help:      "Readings that failed to decode into their attribute's kind.",
		}, []string{"attribute"}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attrengine",
			Name:      "persist_errors_total",
			Help:      "ValueStore evictions that failed to reach the persistent sink.",
		}, []string{"attribute"}),

		Overruns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attrengine",
			Name:      "poll_overruns_total",
			Help:      "Poll ticks dropped because the previous poll was still running, and poll ticks or event callbacks dropped because the worker pool queue was full.",
		}, []string{"attribute"}),

		ValuesStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attrengine",
			Name:      "values_stored_total",
			Help:      "Readings admitted into an attribute's ValueStore.",
		}, []string{"attribute"}),

		PollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attrengine",
			Name:      "poll_duration_seconds",
			Help:      "Wall time spent reading one attribute from its device client.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"attribute"}),

		Attributes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "attrengine",
			Name:      "attributes",
			Help:      "Attributes currently registered, by scheduling method.",
		}, []string{"method"}),
	}
}
