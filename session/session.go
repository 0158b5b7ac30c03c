// Package session wires the per-source-address receiver pipeline — router,
// sorted queues, delayed reader, validators, FEC reader, depacketizer,
// resampler, latency monitor, and watchdog — into the single chain
// described by §4's control-flow paragraph, and owns the lifecycle of one
// such chain (§3 Session). Grounded on the teacher's dialog_session.go
// (one struct owning a call's full media chain end to end, torn down on
// terminal state) generalized from a SIP dialog to a media session.
package session

import (
	"fmt"
	"net"
	"time"

	"github.com/emiago/rocaudio/audio"
	"github.com/emiago/rocaudio/fec"
	"github.com/emiago/rocaudio/packet"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/emiago/rocaudio/rtpvalidate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config configures a Session's whole pipeline.
type Config struct {
	PayloadType uint8
	RemoteAddr  net.Addr

	QueueMaxSize int // 0 = unbounded

	TargetLatencySamples uint32

	Validator rtpvalidate.Config
	FEC       fec.Config
	FECScheme rtppkt.Scheme

	Depacketizer audio.DepacketizerConfig
	Resampler    audio.ResamplerConfig
	Latency      audio.LatencyMonitorConfig
	Watchdog     audio.WatchdogConfig

	Codecs *audio.Registry

	// Debug wires PoisonReader decorators around the resampler (§4
	// Supplemented features).
	Debug bool

	// IdleTimeout destroys the session if no packet arrives for this
	// long, independent of the watchdog's sample-based detectors (open
	// question in §9: dispatcher-level idle eviction).
	IdleTimeout time.Duration
}

// validatingReader wraps a packet.Reader with a Validator. Because
// fec.Reader's internal drain loop discards Read errors (source packets
// with no FEC metadata are routed by presence, not failure), a validation
// failure cannot propagate as a return error through that chain - instead
// it is latched and polled via Err(), mirroring the Watchdog.Terminal()
// pull/tick split used elsewhere in this package.
type validatingReader struct {
	upstream  packet.Reader
	validator *rtpvalidate.Validator
	err       error
}

func newValidatingReader(upstream packet.Reader, v *rtpvalidate.Validator) *validatingReader {
	return &validatingReader{upstream: upstream, validator: v}
}

func (v *validatingReader) Read() (*packet.Packet, error) {
	if v.err != nil {
		return nil, nil
	}
	p, err := v.upstream.Read()
	if err != nil || p == nil {
		return nil, err
	}
	if verr := v.validator.Validate(p); verr != nil {
		v.err = verr
		p.Release()
		return nil, nil
	}
	return p, nil
}

func (v *validatingReader) Err() error { return v.err }

// Session owns one source address's full receive chain (§3 Session). ID
// uniquely identifies the session across its lifetime in logs, distinct
// from RemoteAddr which can be reused once a UDP source re-registers from
// the same address after a prior session's eviction.
type Session struct {
	cfg Config
	ID  string

	router       *packet.Router
	sourceQueue  *packet.SortedQueue
	repairQueue  *packet.SortedQueue
	delayed      *packet.DelayedReader
	validator1   *validatingReader
	fecReader    *fec.Reader
	validator2   *validatingReader
	depacketizer *audio.Depacketizer
	resampler    *audio.Resampler
	latency      *audio.LatencyMonitor
	watchdog     *audio.Watchdog

	terminal Reader // the head of the pull chain audio sinks read from

	lastPacketAt time.Time
	valid        bool

	log zerolog.Logger
}

// Reader is the subset of audio.Reader Session exposes at its terminal
// stage.
type Reader interface {
	ReadFrame(dst *audio.Frame) error
}

// New constructs a full Session pipeline for one source address. decoder is
// the per-session BlockDecoder instance (Reed-Solomon or LDPC-Staircase,
// per cfg.FECScheme).
func New(cfg Config, decoder fec.BlockDecoder, log zerolog.Logger) (*Session, error) {
	if cfg.Codecs == nil {
		return nil, fmt.Errorf("session: Codecs registry is required")
	}

	id := uuid.NewString()
	s := &Session{
		cfg:   cfg,
		ID:    id,
		valid: true,
		log:   log.With().Str("component", "session.Session").Str("session_id", id).Logger(),
	}

	s.router = packet.NewRouter(2)
	s.sourceQueue = packet.NewSortedQueue(cfg.QueueMaxSize)
	s.repairQueue = packet.NewSortedQueue(cfg.QueueMaxSize)
	if err := s.router.AddRoute(packet.FlagAudio, s.sourceQueue); err != nil {
		return nil, err
	}
	if err := s.router.AddRoute(packet.FlagRepair, s.repairQueue); err != nil {
		return nil, err
	}

	s.delayed = packet.NewDelayedReader(s.sourceQueue, cfg.TargetLatencySamples)

	v1 := rtpvalidate.New(cfg.PayloadType, cfg.Validator)
	s.validator1 = newValidatingReader(s.delayed, v1)

	parser := rtppkt.NewParser(cfg.FECScheme, nil)
	s.fecReader = fec.NewReader(cfg.FEC, decoder, s.validator1, s.repairQueue, parser)
	s.fecReader.SetLogger(s.log)

	v2 := rtpvalidate.New(cfg.PayloadType, cfg.Validator)
	s.validator2 = newValidatingReader(s.fecReader, v2)

	s.depacketizer = audio.NewDepacketizer(s.validator2, cfg.Codecs, cfg.Depacketizer)
	s.depacketizer.SetLogger(s.log)

	var preResampler audio.Reader = s.depacketizer
	if cfg.Debug {
		preResampler = audio.NewPoisonReader(preResampler)
	}

	s.resampler = audio.NewResampler(preResampler, cfg.Resampler)

	var postResampler audio.Reader = s.resampler
	if cfg.Debug {
		postResampler = audio.NewPoisonReader(postResampler)
	}

	s.watchdog = audio.NewWatchdog(postResampler, cfg.Watchdog)
	s.watchdog.SetLogger(s.log)
	s.terminal = s.watchdog

	s.latency = audio.NewLatencyMonitor(s.resampler, cfg.Latency)
	s.latency.SetLogger(s.log)

	s.lastPacketAt = time.Now()
	return s, nil
}

// HandlePacket routes an incoming packet into the session's queues (§4
// "UDP ingress is push"). now is the arrival time, tracked for idle
// eviction.
func (s *Session) HandlePacket(p *packet.Packet, now time.Time) error {
	s.lastPacketAt = now
	return s.router.Route(p)
}

// ReadFrame pulls the next audio frame out of the terminal reader (§4
// "the audio sink pulls frames from the terminal reader").
func (s *Session) ReadFrame(dst *audio.Frame) error {
	return s.terminal.ReadFrame(dst)
}

// Update drives the watchdog and latency monitor on the pipeline tick (§4
// "periodically invokes session.update(now)"). It returns false once the
// session must be destroyed: watchdog terminal condition, validator
// rejection, latency-monitor grace-period failure, or idle timeout.
func (s *Session) Update(now time.Time) bool {
	if !s.valid {
		return false
	}

	if s.cfg.IdleTimeout > 0 && now.Sub(s.lastPacketAt) > s.cfg.IdleTimeout {
		s.log.Info().Msg("session idle timeout reached")
		s.valid = false
		return false
	}

	if err := s.validator1.Err(); err != nil {
		s.log.Warn().Err(err).Msg("source validator rejected packet, terminating session")
		s.valid = false
		return false
	}
	if err := s.validator2.Err(); err != nil {
		s.log.Warn().Err(err).Msg("post-FEC validator rejected packet, terminating session")
		s.valid = false
		return false
	}

	buffered := s.bufferedLatency()
	if err := s.latency.Update(now, buffered); err != nil {
		s.log.Warn().Err(err).Msg("latency monitor failure, terminating session")
		s.valid = false
		return false
	}

	if !s.watchdog.Update(now) {
		s.log.Warn().Msg("watchdog terminal condition, terminating session")
		s.valid = false
		return false
	}

	return true
}

// bufferedLatency measures (tail timestamp of packet queue) minus (head
// timestamp) per §4.8.
func (s *Session) bufferedLatency() uint32 {
	head := s.sourceQueue.Head()
	tail := s.sourceQueue.Tail()
	if head == nil || tail == nil {
		return 0
	}
	return tail.Timestamp - head.Timestamp
}

// Valid reports whether the session is still eligible to receive packets
// and produce frames.
func (s *Session) Valid() bool {
	return s.valid
}

// RemoteAddr returns the source address this session was created for.
func (s *Session) RemoteAddr() net.Addr {
	return s.cfg.RemoteAddr
}
