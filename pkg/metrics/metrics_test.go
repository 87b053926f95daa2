package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestCheckoutMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObserveSuccess(120 * time.Millisecond)
	m.ObserveFailure("insufficient_stock", 30*time.Millisecond)
	m.ObserveFailure("insufficient_stock", 10*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, reg, "checkout_success_total", nil))
	assert.Equal(t, float64(2), counterValue(t, reg, "checkout_failure_total", map[string]string{"reason": "insufficient_stock"}))
}

func TestWorkerMetricsNormalizesEmptyJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)

	m.IncSuccess("")
	m.IncFailure("outbox_publish")
	m.ObserveDuration("outbox_publish", time.Second)

	assert.Equal(t, float64(1), counterValue(t, reg, "job_success", map[string]string{"job": "unknown"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "job_failure", map[string]string{"job": "outbox_publish"}))
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewCheckoutMetrics(nil)
	m.ObserveSuccess(time.Second)
	m.ObserveFailure("x", time.Second)

	w := NewWorkerMetrics(nil)
	w.IncSuccess("a")
	w.IncFailure("b")
	w.ObserveDuration("c", time.Second)
}
