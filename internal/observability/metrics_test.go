package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMetricsIncrementCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry, "kind")

	m.IncrementCounter("cache_hit", map[string]string{"kind": "node"})
	m.IncrementCounter("cache_hit", map[string]string{"kind": "node"})

	count := testutil.ToFloat64(m.(*prometheusMetrics).counters.WithLabelValues("cache_hit", "node"))
	assert.Equal(t, float64(2), count)
}

func TestPrometheusMetricsRecordDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry, "method")

	m.RecordDuration("fulltext", map[string]string{"method": "fulltext"}, 50*time.Millisecond)

	count := testutil.CollectAndCount(m.(*prometheusMetrics).durations, "graphcore_operation_duration_seconds")
	assert.Equal(t, 1, count)
}

func TestPrometheusMetricsRecordGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry, "kind")

	m.RecordGauge("l1_occupancy", map[string]string{"kind": "result"}, 42)

	value := testutil.ToFloat64(m.(*prometheusMetrics).gauges.WithLabelValues("l1_occupancy", "result"))
	assert.Equal(t, float64(42), value)
}

func TestNoopMetricsDiscardsEverything(t *testing.T) {
	m := NoopMetrics{}
	m.IncrementCounter("anything", nil)
	m.RecordDuration("anything", nil, time.Second)
	m.RecordGauge("anything", nil, 1)
}
