package sender

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/emiago/rocaudio/fec"
	"github.com/emiago/rocaudio/packet"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// WriterConfig configures the FEC-protected sender chain (§6 "Sender CLI
// mirrors... same FEC knobs").
type WriterConfig struct {
	SBLen      int
	RBLen      int
	SymbolSize int
	Scheme     rtppkt.Scheme // selects header-vs-footer payload ID placement
}

// BlockEncoder is satisfied by fec.RSEncoder and fec.LDPCEncoder.
type BlockEncoder interface {
	Encode(source [][]byte) ([][]byte, error)
}

// Writer accumulates a source block's packets, computes repair symbols once
// the block is full, and writes both source and repair datagrams to their
// respective UDP connections. Grounded on the original roc_fec::Writer's
// "accumulate cur_sblen_ packets, then encode the block" structure
// (original_source/src/modules/roc_fec/writer.cpp), generalized from a
// push-style packet::IWriter sink to direct net.Conn writes.
type Writer struct {
	cfg     WriterConfig
	encoder BlockEncoder

	sourceConn net.Conn
	repairConn net.Conn

	sbn          uint32
	blockPayload [][]byte

	log zerolog.Logger
}

// NewWriter creates a Writer. sourceConn/repairConn are already-dialed UDP
// connections to the receiver's source/repair ports.
func NewWriter(cfg WriterConfig, encoder BlockEncoder, sourceConn, repairConn net.Conn) *Writer {
	return &Writer{
		cfg:        cfg,
		encoder:    encoder,
		sourceConn: sourceConn,
		repairConn: repairConn,
		sbn:        rand.Uint32() & 0xFFFFFF,
		log:        zerolog.Nop(),
	}
}

func (w *Writer) SetLogger(log zerolog.Logger) {
	w.log = log.With().Str("component", "sender.Writer").Logger()
}

// WritePacket accepts one source packet, tags it with the current block's
// FEC payload ID, writes it immediately, and triggers repair-block encoding
// once a full source block has accumulated.
func (w *Writer) WritePacket(pkt *rtp.Packet) error {
	esi := len(w.blockPayload)
	if esi >= w.cfg.SBLen {
		return fmt.Errorf("sender: WritePacket called beyond configured block length")
	}

	fecHdr := packet.FECHeader{SBN: w.sbn, SBLen: uint16(w.cfg.SBLen), ESI: uint16(esi)}
	buf := make([]byte, rtpBufferSize(pkt))
	n, err := rtppkt.MarshalSource(pkt.Header, &fecHdr, pkt.Payload, buf)
	if err != nil {
		return fmt.Errorf("sender: marshal source packet: %w", err)
	}
	if _, err := w.sourceConn.Write(buf[:n]); err != nil {
		return fmt.Errorf("sender: write source datagram: %w", err)
	}

	w.blockPayload = append(w.blockPayload, append([]byte(nil), pkt.Payload...))

	if len(w.blockPayload) == w.cfg.SBLen {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushBlock() error {
	repair, err := w.encoder.Encode(w.blockPayload)
	if err != nil {
		return fmt.Errorf("sender: fec encode: %w", err)
	}

	for i, payload := range repair {
		esi := w.cfg.SBLen + i
		fecHdr := packet.FECHeader{SBN: w.sbn, SBLen: uint16(w.cfg.SBLen), ESI: uint16(esi)}
		buf := make([]byte, rtppkt.FECPayloadIDSize+len(payload))
		n, err := rtppkt.MarshalRepair(w.cfg.Scheme, fecHdr, payload, buf)
		if err != nil {
			return fmt.Errorf("sender: marshal repair packet: %w", err)
		}
		if _, err := w.repairConn.Write(buf[:n]); err != nil {
			return fmt.Errorf("sender: write repair datagram: %w", err)
		}
	}

	w.log.Debug().Uint32("sbn", w.sbn).Int("repair", len(repair)).Msg("flushed FEC block")

	w.sbn++
	w.blockPayload = w.blockPayload[:0]
	return nil
}

func rtpBufferSize(pkt *rtp.Packet) int {
	return 12 + 4*len(pkt.CSRC) + len(pkt.Payload) + rtppkt.FECPayloadIDSize + 64
}

// NewBlockEncoder builds the right BlockEncoder for a FEC scheme, mirroring
// the receiver side's scheme dispatch in cmd/roc-recv.
func NewBlockEncoder(scheme rtppkt.Scheme, sblen, rblen, symbolSize int) (BlockEncoder, error) {
	switch scheme {
	case rtppkt.SchemeReedSolomon:
		return fec.NewRSEncoder(sblen, rblen, symbolSize)
	case rtppkt.SchemeLDPCStaircase:
		return fec.NewLDPCEncoder(sblen, rblen, symbolSize), nil
	default:
		return nil, fmt.Errorf("sender: unknown FEC scheme %v", scheme)
	}
}
