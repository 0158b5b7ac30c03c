package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/emiago/rocaudio/config"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/emiago/rocaudio/sender"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("roc-send exiting")
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

	cfg, err := config.ParseSenderFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	sourceConn, err := net.Dial("udp", cfg.Source)
	if err != nil {
		return fmt.Errorf("dialing source destination: %w", err)
	}
	defer sourceConn.Close()

	var repairConn net.Conn
	scheme := rtppkt.SchemeReedSolomon
	if cfg.FEC != config.FECNone {
		if cfg.FEC == config.FECLDPC {
			scheme = rtppkt.SchemeLDPCStaircase
		}
		repairConn, err = net.Dial("udp", cfg.Repair)
		if err != nil {
			return fmt.Errorf("dialing repair destination: %w", err)
		}
		defer repairConn.Close()
	}

	const frameSize = 160 // samples/channel per packet, 20ms at 8kHz
	payloadBytes := frameSize * cfg.Channels * 2

	var writer *sender.Writer
	if cfg.FEC != config.FECNone {
		enc, err := sender.NewBlockEncoder(scheme, cfg.NBSrc, cfg.NBRpr, payloadBytes)
		if err != nil {
			return fmt.Errorf("building FEC encoder: %w", err)
		}
		writer = sender.NewWriter(sender.WriterConfig{SBLen: cfg.NBSrc, RBLen: cfg.NBRpr, SymbolSize: payloadBytes, Scheme: scheme},
			enc, sourceConn, repairConn)
		writer.SetLogger(log.Logger)
	}

	packetizer := sender.NewPacketizer(payloadTypeFor(cfg))

	log.Info().Str("source", cfg.Source).Str("fec", string(cfg.FEC)).Msg("roc-send started")

	// The audio capture source is outside this module's scope (§6 "Sender
	// CLI mirrors"); this loop sends silence at the configured cadence so
	// the binary is runnable end to end against roc-recv without an
	// external capture device wired in.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	silence := make([]byte, payloadBytes)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			pkt := packetizer.Packetize(silence, uint32(frameSize))
			if writer != nil {
				if err := writer.WritePacket(pkt); err != nil {
					log.Warn().Err(err).Msg("write failed")
				}
				continue
			}
			buf := make([]byte, 12+len(pkt.Payload))
			n, err := pkt.MarshalTo(buf)
			if err != nil {
				log.Warn().Err(err).Msg("marshal failed")
				continue
			}
			if _, err := sourceConn.Write(buf[:n]); err != nil {
				log.Warn().Err(err).Msg("write failed")
			}
		}
	}
}

func payloadTypeFor(cfg config.SenderConfig) uint8 {
	if cfg.Rate == 48000 {
		return 97
	}
	return 96
}
