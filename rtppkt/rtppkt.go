// Package rtppkt parses and composes the wire formats named in §6: plain
// RTP, RTP carrying a header FEC payload ID, and raw FEC repair payloads
// carrying their own payload ID. It adapts the teacher's
// media/rtp_parse.go RTPUnmarshal approach (allocate-avoiding header parse
// on top of github.com/pion/rtp) to the packet.Packet model.
package rtppkt

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/emiago/rocaudio/packet"
	"github.com/pion/rtp"
)

// FECPayloadIDSize is the wire size in bytes of the FECFRAME payload ID:
// sbn (24 bits used of a u32 field), k/sblen (u16), esi (u16) — big-endian
// (§6).
const FECPayloadIDSize = 8

// Scheme selects where the FEC payload ID sits relative to the raw payload,
// which differs per codec (§6): Reed-Solomon repair packets carry the
// payload ID as a header; LDPC-Staircase repair packets carry it as a
// footer.
type Scheme int

const (
	SchemeReedSolomon Scheme = iota
	SchemeLDPCStaircase
)

// Parser parses datagrams into packet.Packet values, dispatching on
// Flags/Scheme to locate the FEC payload ID correctly.
type Parser struct {
	Scheme Scheme
	Pool   *packet.Pool
}

func NewParser(scheme Scheme, pool *packet.Pool) *Parser {
	return &Parser{Scheme: scheme, Pool: pool}
}

// ParseSource parses a plain or FEC-tagged RTP source datagram received
// from addr. hasFEC indicates whether a header FEC payload ID follows the
// RTP header (§6 "RTP + FEC source").
func (pr *Parser) ParseSource(buf []byte, addr net.Addr, hasFEC bool) (*packet.Packet, error) {
	var hdr rtp.Header
	n, err := hdr.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("rtppkt: header unmarshal: %w", err)
	}

	rest := buf[n:]
	flags := packet.FlagAudio
	var fec packet.FECHeader
	if hasFEC {
		if len(rest) < FECPayloadIDSize {
			return nil, fmt.Errorf("rtppkt: short FEC payload id")
		}
		fec = unmarshalPayloadID(rest[:FECPayloadIDSize])
		rest = rest[FECPayloadIDSize:]
		flags |= packet.FlagFEC
	}

	p := pr.newPacket(rest)
	if p == nil {
		return nil, fmt.Errorf("rtppkt: packet pool exhausted")
	}
	p.SourceID = hdr.SSRC
	p.SeqNum = hdr.SequenceNumber
	p.Timestamp = hdr.Timestamp
	p.PayloadType = hdr.PayloadType
	p.Marker = hdr.Marker
	p.Flags = flags
	p.FEC = fec
	p.Addr = addr
	return p, nil
}

// ParseRepair parses a raw FEC repair datagram (§6 "FEC repair"), whose
// payload ID is positioned per pr.Scheme. Repair datagrams carry no RTP
// header, so SourceID/SeqNum are derived from the payload ID itself (SBN,
// ESI) rather than supplied by the caller: that is the only discriminant
// that makes two repair packets from the same block distinguishable once
// they reach packet.SortedQueue's duplicate-suppressing dupKey.
func (pr *Parser) ParseRepair(buf []byte, addr net.Addr) (*packet.Packet, error) {
	if len(buf) < FECPayloadIDSize {
		return nil, fmt.Errorf("rtppkt: short repair datagram")
	}

	var fec packet.FECHeader
	var payload []byte
	switch pr.Scheme {
	case SchemeReedSolomon:
		fec = unmarshalPayloadID(buf[:FECPayloadIDSize])
		payload = buf[FECPayloadIDSize:]
	case SchemeLDPCStaircase:
		split := len(buf) - FECPayloadIDSize
		fec = unmarshalPayloadID(buf[split:])
		payload = buf[:split]
	default:
		return nil, fmt.Errorf("rtppkt: unknown scheme %d", pr.Scheme)
	}

	p := pr.newPacket(payload)
	if p == nil {
		return nil, fmt.Errorf("rtppkt: packet pool exhausted")
	}
	p.SourceID = fec.SBN
	p.SeqNum = fec.ESI
	p.Flags = packet.FlagRepair | packet.FlagFEC
	p.FEC = fec
	p.Addr = addr
	return p, nil
}

// ParseRecovered re-parses a reconstructed source payload (raw RTP bytes)
// into a synthetic, Composed packet (§4.5 "Reconstructed source packets are
// thus synthesized from raw bytes").
func (pr *Parser) ParseRecovered(buf []byte, sbn uint32, esi uint16, sblen uint16) (*packet.Packet, error) {
	var hdr rtp.Header
	n, err := hdr.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("rtppkt: recovered header unmarshal: %w", err)
	}

	p := pr.newPacket(buf[n:])
	if p == nil {
		return nil, fmt.Errorf("rtppkt: packet pool exhausted")
	}
	p.SourceID = hdr.SSRC
	p.SeqNum = hdr.SequenceNumber
	p.Timestamp = hdr.Timestamp
	p.PayloadType = hdr.PayloadType
	p.Marker = hdr.Marker
	p.Flags = packet.FlagAudio | packet.FlagFEC | packet.FlagComposed
	p.FEC = packet.FECHeader{SBN: sbn, ESI: esi, SBLen: sblen}
	return p, nil
}

func (pr *Parser) newPacket(payload []byte) *packet.Packet {
	if pr.Pool == nil {
		return &packet.Packet{Payload: append([]byte(nil), payload...)}
	}
	p := packet.NewPacket(pr.Pool, len(payload))
	if p == nil {
		return nil
	}
	copy(p.Payload, payload)
	return p
}

// MarshalSource composes a plain or FEC-tagged RTP source datagram (sender
// side, §6 mirror).
func MarshalSource(hdr rtp.Header, fec *packet.FECHeader, payload []byte, buf []byte) (int, error) {
	n, err := hdr.MarshalTo(buf)
	if err != nil {
		return 0, fmt.Errorf("rtppkt: header marshal: %w", err)
	}
	if fec != nil {
		if len(buf)-n < FECPayloadIDSize {
			return 0, fmt.Errorf("rtppkt: buffer too small for FEC payload id")
		}
		marshalPayloadID(*fec, buf[n:n+FECPayloadIDSize])
		n += FECPayloadIDSize
	}
	if len(buf)-n < len(payload) {
		return 0, fmt.Errorf("rtppkt: buffer too small for payload")
	}
	n += copy(buf[n:], payload)
	return n, nil
}

// MarshalRepair composes a raw FEC repair datagram per scheme.
func MarshalRepair(scheme Scheme, fec packet.FECHeader, payload []byte, buf []byte) (int, error) {
	need := len(payload) + FECPayloadIDSize
	if len(buf) < need {
		return 0, fmt.Errorf("rtppkt: buffer too small for repair datagram")
	}
	switch scheme {
	case SchemeReedSolomon:
		marshalPayloadID(fec, buf[:FECPayloadIDSize])
		copy(buf[FECPayloadIDSize:], payload)
	case SchemeLDPCStaircase:
		copy(buf, payload)
		marshalPayloadID(fec, buf[len(payload):need])
	default:
		return 0, fmt.Errorf("rtppkt: unknown scheme %d", scheme)
	}
	return need, nil
}

func marshalPayloadID(fec packet.FECHeader, buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], fec.SBN&0xFFFFFF)
	binary.BigEndian.PutUint16(buf[4:6], fec.SBLen)
	binary.BigEndian.PutUint16(buf[6:8], fec.ESI)
}

func unmarshalPayloadID(buf []byte) packet.FECHeader {
	return packet.FECHeader{
		SBN:   binary.BigEndian.Uint32(buf[0:4]) & 0xFFFFFF,
		SBLen: binary.BigEndian.Uint16(buf[4:6]),
		ESI:   binary.BigEndian.Uint16(buf[6:8]),
	}
}
