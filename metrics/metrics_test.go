package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetricsRecordSessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	require.Equal(t, 2.0, gaugeValue(t, m.SessionsActive))

	m.RecordSessionDestroyed("watchdog")
	require.Equal(t, 1.0, gaugeValue(t, m.SessionsActive))
}

func TestMetricsRecordFECOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordFECRecovered(3)
	m.RecordFECUnrecoverable(1)

	require.Equal(t, 3.0, counterValue(t, m.FECRecoveredTotal))
	require.Equal(t, 1.0, counterValue(t, m.FECUnrecoverableTotal))
}

func TestMetricsGaugesTrackLatestSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetBufferedLatency(1600)
	m.SetResamplerScaling(1.02)

	require.Equal(t, 1600.0, gaugeValue(t, m.BufferedLatencySamples))
	require.Equal(t, 1.02, gaugeValue(t, m.ResamplerScaling))
}
