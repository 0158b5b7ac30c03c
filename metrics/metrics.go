// Package metrics exposes the receiver/sender's counters and gauges via
// Prometheus, grounded on the teacher pack's DMRHub internal/metrics
// package (a Metrics struct holding pre-built prometheus.CounterVec /
// Gauge fields, registered once in a constructor, with small typed
// recording methods) and sockstats' exporter packages (promhttp.Handler
// wired onto a dedicated bind address).
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the receiver and sender pipelines
// record against.
type Metrics struct {
	PacketsDroppedTotal   *prometheus.CounterVec // reason: parse|dispatch
	SessionsActive        prometheus.Gauge
	SessionsCreatedTotal  prometheus.Counter
	SessionsDestroyedTotal *prometheus.CounterVec // reason: watchdog|validator|latency|idle
	FECRecoveredTotal     prometheus.Counter
	FECUnrecoverableTotal prometheus.Counter
	BufferedLatencySamples prometheus.Gauge
	ResamplerScaling      prometheus.Gauge
	FramesEmittedTotal    *prometheus.CounterVec // quality: ok|empty|incomplete|broken
}

// NewMetrics builds and registers every collector against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps tests free of cross-test registration collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rocaudio_packets_dropped_total",
			Help: "Total number of packets dropped before reaching a session's frame output.",
		}, []string{"reason"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rocaudio_sessions_active",
			Help: "Number of currently live receiver sessions.",
		}),
		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocaudio_sessions_created_total",
			Help: "Total number of sessions created.",
		}),
		SessionsDestroyedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rocaudio_sessions_destroyed_total",
			Help: "Total number of sessions destroyed, by reason.",
		}, []string{"reason"}),
		FECRecoveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocaudio_fec_recovered_total",
			Help: "Total number of source symbols recovered by the FEC decoder.",
		}),
		FECUnrecoverableTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rocaudio_fec_unrecoverable_total",
			Help: "Total number of source symbols that remained missing after FEC decoding.",
		}),
		BufferedLatencySamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rocaudio_buffered_latency_samples",
			Help: "Most recently measured buffered latency, in samples, across sessions.",
		}),
		ResamplerScaling: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rocaudio_resampler_scaling_ratio",
			Help: "Most recently applied resampler scaling ratio.",
		}),
		FramesEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rocaudio_frames_emitted_total",
			Help: "Total number of frames emitted by depacketizers, by quality.",
		}, []string{"quality"}),
	}
	m.register(reg)
	return m
}

func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.PacketsDroppedTotal,
		m.SessionsActive,
		m.SessionsCreatedTotal,
		m.SessionsDestroyedTotal,
		m.FECRecoveredTotal,
		m.FECUnrecoverableTotal,
		m.BufferedLatencySamples,
		m.ResamplerScaling,
		m.FramesEmittedTotal,
	)
}

func (m *Metrics) RecordPacketDropped(reason string) {
	m.PacketsDroppedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreatedTotal.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) RecordSessionDestroyed(reason string) {
	m.SessionsDestroyedTotal.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

func (m *Metrics) RecordFECRecovered(n int) {
	m.FECRecoveredTotal.Add(float64(n))
}

func (m *Metrics) RecordFECUnrecoverable(n int) {
	m.FECUnrecoverableTotal.Add(float64(n))
}

func (m *Metrics) SetBufferedLatency(samples uint32) {
	m.BufferedLatencySamples.Set(float64(samples))
}

func (m *Metrics) SetResamplerScaling(ratio float64) {
	m.ResamplerScaling.Set(ratio)
}

func (m *Metrics) RecordFrameEmitted(quality string) {
	m.FramesEmittedTotal.WithLabelValues(quality).Inc()
}

// Server serves /metrics on its own bind address, mirroring the pack's
// dedicated-metrics-listener pattern rather than multiplexing onto the
// media UDP sockets.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}}
}

// ListenAndServe blocks until the server stops or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: server stopped: %w", err)
	}
}
