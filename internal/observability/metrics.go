package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsClient records the counters spec.md §4.2 and §4.3 call out: cache
// hit/miss/eviction/error counts, populate/hit latency, retrieval-method
// degradation. Adapted from the teacher's pkg/observability metrics client,
// backed by github.com/prometheus/client_golang instead of a hand-rolled
// no-op, since the teacher's root go.mod already carries that dependency.
type MetricsClient interface {
	IncrementCounter(name string, labels map[string]string)
	RecordDuration(name string, labels map[string]string, d time.Duration)
	RecordGauge(name string, labels map[string]string, value float64)
}

type prometheusMetrics struct {
	counters   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	gauges     *prometheus.GaugeVec
	labelNames []string
}

// NewPrometheusMetrics registers a small fixed set of vector metrics keyed by
// a "name" label plus whatever extra label names are supplied, so callers
// don't need to pre-register every metric name individually.
func NewPrometheusMetrics(registry prometheus.Registerer, labelNames ...string) MetricsClient {
	names := append([]string{"name"}, labelNames...)
	m := &prometheusMetrics{
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcore",
			Name:      "events_total",
			Help:      "Count of named events across the search core.",
		}, names),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphcore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of named operations across the search core.",
			Buckets:   prometheus.DefBuckets,
		}, names),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "graphcore",
			Name:      "gauge",
			Help:      "Named gauge values across the search core.",
		}, names),
		labelNames: names,
	}
	registry.MustRegister(m.counters, m.durations, m.gauges)
	return m
}

func (m *prometheusMetrics) values(name string, labels map[string]string) []string {
	values := make([]string, len(m.labelNames))
	values[0] = name
	for i, n := range m.labelNames[1:] {
		values[i+1] = labels[n]
	}
	return values
}

func (m *prometheusMetrics) IncrementCounter(name string, labels map[string]string) {
	m.counters.WithLabelValues(m.values(name, labels)...).Inc()
}

func (m *prometheusMetrics) RecordDuration(name string, labels map[string]string, d time.Duration) {
	m.durations.WithLabelValues(m.values(name, labels)...).Observe(d.Seconds())
}

func (m *prometheusMetrics) RecordGauge(name string, labels map[string]string, value float64) {
	m.gauges.WithLabelValues(m.values(name, labels)...).Set(value)
}

// NoopMetrics discards everything; used in tests that don't care about
// metrics wiring.
type NoopMetrics struct{}

func (NoopMetrics) IncrementCounter(string, map[string]string)            {}
func (NoopMetrics) RecordDuration(string, map[string]string, time.Duration) {}
func (NoopMetrics) RecordGauge(string, map[string]string, float64)        {}
