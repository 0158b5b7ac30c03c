package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/emiago/rocaudio/audio"
	"github.com/emiago/rocaudio/config"
	"github.com/emiago/rocaudio/fec"
	"github.com/emiago/rocaudio/metrics"
	"github.com/emiago/rocaudio/packet"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/emiago/rocaudio/rtpvalidate"
	"github.com/emiago/rocaudio/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("roc-recv exiting")
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	lev, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)

	cfg, err := config.ParseReceiverFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	sourceConn, err := net.ListenPacket("udp", cfg.Source)
	if err != nil {
		return fmt.Errorf("binding source socket: %w", err)
	}
	defer sourceConn.Close()

	var repairConn net.PacketConn
	if cfg.FEC != config.FECNone {
		repairConn, err = net.ListenPacket("udp", cfg.Repair)
		if err != nil {
			return fmt.Errorf("binding repair socket: %w", err)
		}
		defer repairConn.Close()
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	scheme := rtppkt.SchemeReedSolomon
	if cfg.FEC == config.FECLDPC {
		scheme = rtppkt.SchemeLDPCStaircase
	}

	// Symbol size assumes the default linear-PCM payload types (§6): 160
	// samples/channel, stereo, 16-bit. A deployment using a different
	// codec would need a matching --rate/--type-driven symbol size; this
	// CLI is deliberately minimal per §6.
	const payloadBytes = 160 * 2 * 2

	decoderFactory := func() fec.BlockDecoder {
		switch cfg.FEC {
		case config.FECRS:
			return fec.NewRSDecoder(payloadBytes)
		case config.FECLDPC:
			return fec.NewLDPCDecoder(payloadBytes)
		default:
			return noopDecoder{}
		}
	}

	newSessionConfig := func(addr net.Addr) session.Config {
		return session.Config{
			QueueMaxSize:         1024,
			TargetLatencySamples: uint32(cfg.Latency.Seconds() * 8000),
			Validator:            rtpvalidate.DefaultConfig,
			FEC:                  fec.Config{SBLen: cfg.NBSrc, RBLen: cfg.NBRpr, MaxBlocksBehind: 4},
			FECScheme:            scheme,
			Depacketizer:         audio.DepacketizerConfig{FrameSize: 160, Channels: 2},
			Resampler:            audio.ResamplerConfig{WindowSize: cfg.ResamplerWindow, WindowInterp: cfg.ResamplerInterp, FrameSize: 160, Channels: 2},
			Latency: audio.LatencyMonitorConfig{
				TargetLatency: uint32(cfg.Latency.Seconds() * 8000),
				MinLatency:    uint32(cfg.MinLatency.Seconds() * 8000),
				MaxLatency:    uint32(cfg.MaxLatency.Seconds() * 8000),
				Kp:            0.05,
				GracePeriod:   2 * time.Second,
			},
			Watchdog: audio.WatchdogConfig{
				FrameSize:         160,
				NoPlaybackTimeout: uint32(cfg.NPTimeout.Seconds() * 8000),
				FrameStatusWindow: cfg.BPWindow,
				BrokenThreshold:   0.5,
			},
			Codecs:      audio.NewRegistry(),
			Debug:       cfg.Debug,
			IdleTimeout: 2 * cfg.NPTimeout,
		}
	}

	dispatcher := session.NewDispatcher(newSessionConfig, decoderFactory, log.Logger)

	pr := rtppkt.NewParser(scheme, packet.NewPool(1500, 256))

	go ingressLoop(ctx, sourceConn, pr, dispatcher, packet.FlagAudio, cfg.FEC != config.FECNone, m, log.Logger)
	if repairConn != nil {
		go ingressLoop(ctx, repairConn, pr, dispatcher, packet.FlagRepair, true, m, log.Logger)
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case now := <-ticker.C:
			dispatcher.Update(now)
		}
	}
}

// noopDecoder is used when FEC is disabled: every Repair lookup reports
// nothing available, so the FEC reader degrades to pass-through.
type noopDecoder struct{}

func (noopDecoder) Begin(sblen, rblen int) error { return nil }
func (noopDecoder) Set(index int, buf []byte)    {}
func (noopDecoder) Repair(index int) []byte      { return nil }
func (noopDecoder) End()                         {}

func ingressLoop(ctx context.Context, conn net.PacketConn, pr *rtppkt.Parser, dispatcher *session.Dispatcher, flag packet.Flags, hasFEC bool, m *metrics.Metrics, log zerolog.Logger) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Msg("read error")
			continue
		}

		var p *packet.Packet
		if flag == packet.FlagRepair {
			p, err = pr.ParseRepair(buf[:n], addr)
		} else {
			p, err = pr.ParseSource(buf[:n], addr, hasFEC)
		}
		if err != nil {
			m.RecordPacketDropped("parse")
			continue
		}
		if flag == packet.FlagRepair {
			p.Flags |= packet.FlagRepair
		} else {
			p.Flags |= packet.FlagAudio
		}

		if _, err := dispatcher.Dispatch(p, time.Now()); err != nil {
			m.RecordPacketDropped("dispatch")
		}
	}
}
