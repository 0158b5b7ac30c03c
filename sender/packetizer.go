// Package sender implements the symmetric sender-side mirror of the
// receiver pipeline (§6 "Symmetric sender side"): samples are packetized
// into RTP, optionally protected by a block erasure code, and written to
// UDP. Grounded on the teacher's media/rtp_packet_writer.go (an SSRC-owning
// packetizer that assigns a monotonically advancing RTP timestamp and
// sequence number per write) generalized from a clock-ticker-paced single
// write to an explicit per-frame WritePacket call driven by the caller.
package sender

import (
	"math/rand"

	"github.com/pion/rtp"
)

// Packetizer turns successive sample buffers into RTP packets carrying a
// single SSRC, a monotonically advancing sequence number, and a timestamp
// that advances by the sample count of each buffer (§3 Packet invariants
// mirrored for transmission).
type Packetizer struct {
	payloadType uint8
	ssrc        uint32

	seq       uint16
	timestamp uint32
	started   bool
}

// NewPacketizer creates a Packetizer with a freshly randomized SSRC and
// initial sequence number, matching the teacher's rand.Uint32() SSRC
// assignment and RFC 3550's recommendation of a random initial sequence
// number.
func NewPacketizer(payloadType uint8) *Packetizer {
	return &Packetizer{
		payloadType: payloadType,
		ssrc:        rand.Uint32(),
		seq:         uint16(rand.Uint32()),
		timestamp:   rand.Uint32(),
	}
}

// Packetize builds one RTP packet from payload, advancing the clock by
// samplesPerChannel. The marker bit is set exactly once, on the first
// packet, per RFC 3550's convention for signaling the start of a talkspurt.
func (p *Packetizer) Packetize(payload []byte, samplesPerChannel uint32) *rtp.Packet {
	marker := !p.started
	p.started = true

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    p.payloadType,
			SequenceNumber: p.seq,
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}

	p.seq++
	p.timestamp += samplesPerChannel
	return pkt
}

// SSRC reports the packetizer's source identifier.
func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}
