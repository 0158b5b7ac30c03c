// Package rtpvalidate implements the stateful per-session RTP Validator
// (§4.3), grounded on the teacher's media/rtp_sequencer.go sequence-tracking
// idiom (RFC 3550 appendix A.2 style delta checks) generalized from
// "log a warning on reorder" to "reject and terminate the session".
package rtpvalidate

import (
	"errors"

	"github.com/emiago/rocaudio/packet"
)

// ErrPayloadTypeMismatch, ErrSourceChanged, ErrSeqJump and ErrTimestampJump
// are all terminal for the session that encounters them (§4.3: "Rejection
// is terminal for the session — caller tears down").
var (
	ErrPayloadTypeMismatch = errors.New("rtpvalidate: payload type mismatch")
	ErrSourceChanged       = errors.New("rtpvalidate: source id changed")
	ErrSeqJump             = errors.New("rtpvalidate: sequence number jump exceeds limit")
	ErrTimestampJump       = errors.New("rtpvalidate: timestamp jump exceeds limit")
)

// Config bounds the validator's tolerance for sequence and timestamp jumps.
type Config struct {
	MaxSNJump uint16
	MaxTSJump uint32
}

// DefaultConfig mirrors sane defaults for 8kHz/20ms audio: a full block's
// worth of sequence slack and roughly a second of timestamp slack.
var DefaultConfig = Config{
	MaxSNJump: 100,
	MaxTSJump: 8000,
}

// Validator rejects packets that violate payload-type, sequence, or
// timestamp invariants (§4.3). It is not safe for concurrent use — each
// Validator instance belongs to one pull chain of one session.
type Validator struct {
	cfg Config

	initialized   bool
	payloadType   uint8
	lastSeqNum    uint16
	lastTimestamp uint32
	lastSourceID  uint32
}

// New creates a Validator configured for the given payload type and jump
// tolerances.
func New(payloadType uint8, cfg Config) *Validator {
	return &Validator{
		cfg:         cfg,
		payloadType: payloadType,
	}
}

// Validate checks p against the validator's running state and, if
// accepted, updates that state. A non-nil error means the session must be
// torn down.
func (v *Validator) Validate(p *packet.Packet) error {
	if p.PayloadType != v.payloadType {
		return ErrPayloadTypeMismatch
	}

	if !v.initialized {
		v.initialized = true
		v.lastSeqNum = p.SeqNum
		v.lastTimestamp = p.Timestamp
		v.lastSourceID = p.SourceID
		return nil
	}

	if p.SourceID != v.lastSourceID {
		return ErrSourceChanged
	}

	snDelta := p.SeqNum - v.lastSeqNum
	if absInt16(int16(snDelta)) > int(v.cfg.MaxSNJump) {
		return ErrSeqJump
	}

	tsDelta := p.Timestamp - v.lastTimestamp
	if absInt32(int32(tsDelta)) > int64(v.cfg.MaxTSJump) {
		return ErrTimestampJump
	}

	v.lastSeqNum = p.SeqNum
	v.lastTimestamp = p.Timestamp
	return nil
}

func absInt16(v int16) int {
	if v < 0 {
		return int(-v)
	}
	return int(v)
}

func absInt32(v int32) int64 {
	if v < 0 {
		return int64(-v)
	}
	return int64(v)
}
