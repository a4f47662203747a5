package metrics_test

import (
	"testing"

	"github.com/jerry73204/conflux/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveReceived_IncrementsCounter(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := metrics.NewRecorder[string](reg)

	rec.ObserveReceived("A")
	rec.ObserveReceived("A")
	rec.ObserveReceived("B")

	got, err := reg.Prometheus().Gather()
	require.NoError(t, err)

	value := findCounterValue(t, got, "conflux_messages_received_total", map[string]string{"key": "A", "outcome": "accepted"})
	assert.Equal(t, 2.0, value)
}

func TestRecorder_ObserveGroupEmitted(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := metrics.NewRecorder[string](reg)

	rec.ObserveGroupEmitted()
	rec.ObserveGroupEmitted()

	got, err := reg.Prometheus().Gather()
	require.NoError(t, err)

	for _, mf := range got {
		if mf.GetName() == "conflux_groups_emitted_total" {
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, 2.0, mf.Metric[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatal("conflux_groups_emitted_total not found")
}

func TestRecorder_ObserveOccupancy_SetsGauge(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := metrics.NewRecorder[string](reg)

	rec.ObserveOccupancy("A", 7, 64)

	got, err := reg.Prometheus().Gather()
	require.NoError(t, err)

	value := findGaugeValue(t, got, "conflux_buffer_occupancy", map[string]string{"key": "A"})
	assert.Equal(t, 7.0, value)
}

func findCounterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if labelsMatch(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func findGaugeValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if labelsMatch(m.GetLabel(), labels) {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}
