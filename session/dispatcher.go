package session

import (
	"net"
	"sync"
	"time"

	"github.com/emiago/rocaudio/fec"
	"github.com/emiago/rocaudio/packet"
	"github.com/rs/zerolog"
)

// DecoderFactory builds a fresh per-session BlockDecoder, since decoder
// state (shard buffers, solved equations) cannot be shared across sessions
// from different source addresses.
type DecoderFactory func() fec.BlockDecoder

// Dispatcher maps source addresses to Sessions (§3 Session: "created on
// first packet from a new source; destroyed when watchdog declares failure
// or no packet arrives for a configurable idle period"). Grounded on the
// teacher's dialog_cache.go (a mutex-guarded map keyed by dialog identity,
// with lazy creation and periodic sweep) generalized from SIP dialogs to
// media sessions keyed by UDP source address.
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[string]*Session

	newConfig func(addr net.Addr) Config
	decoder   DecoderFactory
	log       zerolog.Logger

	// MaxSessions bounds concurrent sessions; 0 means unbounded.
	MaxSessions int
}

// NewDispatcher creates a Dispatcher. newConfig builds a per-source Config
// (so distinct sources can use independent latency/FEC parameters if a
// caller wants), decoder builds a fresh BlockDecoder per session.
func NewDispatcher(newConfig func(addr net.Addr) Config, decoder DecoderFactory, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions:  make(map[string]*Session),
		newConfig: newConfig,
		decoder:   decoder,
		log:       log.With().Str("component", "session.Dispatcher").Logger(),
	}
}

// Dispatch routes p to the session for its source address, creating one if
// none exists yet. Returns the session (for callers that want to pull
// frames from it) and any construction error.
func (d *Dispatcher) Dispatch(p *packet.Packet, now time.Time) (*Session, error) {
	key := p.Addr.String()

	d.mu.Lock()
	s, ok := d.sessions[key]
	if !ok {
		if d.MaxSessions > 0 && len(d.sessions) >= d.MaxSessions {
			d.mu.Unlock()
			p.Release()
			d.log.Warn().Str("addr", key).Msg("session limit reached, dropping packet from new source")
			return nil, nil
		}
		cfg := d.newConfig(p.Addr)
		cfg.RemoteAddr = p.Addr
		var err error
		s, err = New(cfg, d.decoder(), d.log)
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		d.sessions[key] = s
		d.log.Info().Str("addr", key).Str("session_id", s.ID).Msg("session created")
	}
	d.mu.Unlock()

	if err := s.HandlePacket(p, now); err != nil {
		return s, err
	}
	return s, nil
}

// Sessions returns a snapshot slice of all currently live sessions.
func (d *Dispatcher) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

// Update ticks every live session and evicts any that are no longer valid
// (§4 "pipeline tick ... periodically invokes session.update(now) on every
// live session").
func (d *Dispatcher) Update(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.sessions {
		if !s.Update(now) {
			delete(d.sessions, key)
			d.log.Info().Str("addr", key).Str("session_id", s.ID).Msg("session destroyed")
		}
	}
}

// Count returns the number of live sessions.
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
