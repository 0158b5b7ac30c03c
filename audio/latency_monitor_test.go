package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingResampler struct {
	ratios []float64
}

func (r *recordingResampler) SetScaling(ratio float64) {
	r.ratios = append(r.ratios, ratio)
}

func TestLatencyMonitorUnityRatioAtTarget(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	m := NewLatencyMonitor(res, cfg)

	now := time.Unix(0, 0)
	require.NoError(t, m.Update(now, cfg.TargetLatency))
	require.InDelta(t, 1.0, res.ratios[0], 1e-9, "at target latency the ratio should be unity")
}

func TestLatencyMonitorSpeedsUpWhenOverbuffered(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	m := NewLatencyMonitor(res, cfg)

	now := time.Unix(0, 0)
	require.NoError(t, m.Update(now, cfg.TargetLatency*2))
	require.Greater(t, res.ratios[0], 1.0, "overbuffered should drain faster than realtime")
}

func TestLatencyMonitorSlowsDownWhenUnderbuffered(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	m := NewLatencyMonitor(res, cfg)

	now := time.Unix(0, 0)
	require.NoError(t, m.Update(now, cfg.TargetLatency/2))
	require.Less(t, res.ratios[0], 1.0)
}

func TestLatencyMonitorBoundsScaling(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	cfg.Kp = 10 // exaggerate to force clamping
	m := NewLatencyMonitor(res, cfg)

	now := time.Unix(0, 0)
	require.NoError(t, m.Update(now, cfg.MaxLatency))
	hi := float64(cfg.TargetLatency) / float64(cfg.MinLatency)
	require.LessOrEqual(t, res.ratios[0], hi+1e-9)
}

func TestLatencyMonitorFailsAfterGracePeriod(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	cfg.GracePeriod = time.Second
	m := NewLatencyMonitor(res, cfg)

	start := time.Unix(0, 0)
	require.NoError(t, m.Update(start, cfg.MaxLatency*10))
	require.NoError(t, m.Update(start.Add(500*time.Millisecond), cfg.MaxLatency*10))
	err := m.Update(start.Add(2*time.Second), cfg.MaxLatency*10)
	require.Error(t, err, "latency stuck out of bounds beyond grace period must fail")
}

func TestLatencyMonitorRecoversWithinGracePeriod(t *testing.T) {
	res := &recordingResampler{}
	cfg := DefaultLatencyMonitorConfig
	cfg.GracePeriod = time.Second
	m := NewLatencyMonitor(res, cfg)

	start := time.Unix(0, 0)
	require.NoError(t, m.Update(start, cfg.MaxLatency*10))
	require.NoError(t, m.Update(start.Add(500*time.Millisecond), cfg.TargetLatency))
	require.NoError(t, m.Update(start.Add(3*time.Second), cfg.TargetLatency), "returning in-bounds must reset the grace timer")
}
