package fec

import (
	"github.com/emiago/rocaudio/packet"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/rs/zerolog"
)

// Config configures the block assembly state machine (§4.5).
type Config struct {
	SBLen int
	RBLen int
	// MaxBlocksBehind bounds how many blocks the reader is allowed to sit
	// on an unresolved current block before it force-advances, emitting
	// nulls for any slot it could not fill (§4.5 Block advancement
	// trigger).
	MaxBlocksBehind uint32
}

// Reader is the FEC block assembly state machine (§4.5) — the heart of the
// receiver. It drives a BlockDecoder and presents a seamless, in-order
// source packet stream to downstream stages, tolerating both optimal and
// non-optimal decoder behavior.
type Reader struct {
	cfg     Config
	decoder BlockDecoder

	sourceReader packet.Reader
	repairReader packet.Reader
	parser       *rtppkt.Parser

	log zerolog.Logger

	blockStarted bool
	currentSBN   uint32
	emitCursor   int

	sourceSlots []*packet.Packet
	// pending holds packets for blocks strictly after currentSBN,
	// observed while draining but not yet ready to be assembled (§4.5
	// step 2 "next-block pre-queue").
	pending []*packet.Packet
}

// NewReader constructs a Reader. sourceReader and repairReader are the
// validator-or-queue readers for the source and repair sub-streams
// respectively (§4.5: "pulls source packets while also consuming repair
// packets from a parallel queue").
func NewReader(cfg Config, decoder BlockDecoder, sourceReader, repairReader packet.Reader, parser *rtppkt.Parser) *Reader {
	return &Reader{
		cfg:          cfg,
		decoder:      decoder,
		sourceReader: sourceReader,
		repairReader: repairReader,
		parser:       parser,
		log:          zerolog.Nop(),
	}
}

func (r *Reader) SetLogger(log zerolog.Logger) {
	r.log = log.With().Str("component", "fec.Reader").Logger()
}

// Read implements packet.Reader (§4.5).
func (r *Reader) Read() (*packet.Packet, error) {
	// Bound block-advance iterations within a single call: a Reader
	// stuck far behind should not spin forever in one Read.
	for attempts := 0; attempts < 8; attempts++ {
		if !r.blockStarted {
			if !r.tryStartBlock() {
				return nil, nil // not enough data yet to know the first block
			}
		}

		if r.emitCursor < r.cfg.SBLen {
			if p := r.sourceSlots[r.emitCursor]; p != nil {
				r.emitCursor++
				return p, nil
			}
			if buf := r.decoder.Repair(r.emitCursor); buf != nil {
				esi := r.emitCursor
				r.emitCursor++
				rp, err := r.parser.ParseRecovered(buf, r.currentSBN, uint16(esi), uint16(r.cfg.SBLen))
				if err != nil {
					r.log.Debug().Err(err).Msg("recovered payload failed to re-parse as RTP, treating as gap")
					return nil, nil
				}
				return rp, nil
			}

			if r.shouldForceAdvance() {
				r.log.Debug().Uint32("sbn", r.currentSBN).Int("esi", r.emitCursor).Msg("forcing block advance, emitting gap")
				r.emitCursor++
				return nil, nil
			}
		}

		drained := r.drainAvailable()

		if r.emitCursor >= r.cfg.SBLen {
			r.advanceBlock()
			continue
		}

		if !drained {
			return nil, nil // §4.5 step 4: insufficient data, signal a gap
		}
	}
	return nil, nil
}

// tryStartBlock establishes the first block from whichever sub-stream
// yields a packet first.
func (r *Reader) tryStartBlock() bool {
	for {
		drained := r.drainAvailable()
		if r.blockStarted {
			return true
		}
		if !drained {
			return false
		}
	}
}

// drainAvailable pulls every currently-available packet off both
// sub-streams and routes each into the current block, the pre-queue, or
// the floor (dropped, belongs to an earlier block). Returns whether
// anything was pulled.
func (r *Reader) drainAvailable() bool {
	progressed := false
	for {
		p, _ := r.sourceReader.Read()
		if p == nil {
			break
		}
		progressed = true
		r.route(p)
	}
	for {
		p, _ := r.repairReader.Read()
		if p == nil {
			break
		}
		progressed = true
		r.route(p)
	}
	return progressed
}

func (r *Reader) route(p *packet.Packet) {
	if !r.blockStarted {
		r.beginBlock(p.FEC.SBN)
	}

	switch {
	case p.FEC.SBN == r.currentSBN:
		r.fillSlot(p)
	case packet.SBNAfter(p.FEC.SBN, r.currentSBN):
		r.pending = append(r.pending, p)
	default:
		// Belongs to an earlier, already-advanced-past block; drop
		// (§4.5 step 2: "packets belonging to earlier blocks are
		// dropped").
		p.Release()
	}
}

func (r *Reader) fillSlot(p *packet.Packet) {
	esi := int(p.FEC.ESI)
	if esi < r.cfg.SBLen {
		if r.sourceSlots[esi] == nil {
			r.sourceSlots[esi] = p
			r.decoder.Set(esi, p.Payload)
		}
		return
	}
	// Repair slot: the decoder only needs the payload, not a retained
	// Packet reference (repair packets are never emitted downstream).
	r.decoder.Set(esi, p.Payload)
	p.Release()
}

func (r *Reader) beginBlock(sbn uint32) {
	r.decoder.Begin(r.cfg.SBLen, r.cfg.RBLen)
	r.currentSBN = sbn
	r.emitCursor = 0
	r.sourceSlots = make([]*packet.Packet, r.cfg.SBLen)
	r.blockStarted = true
	r.drainPending()
}

// advanceBlock tears down the exhausted current block and starts the next
// one, draining anything already buffered in the pre-queue (§4.5 step 3).
func (r *Reader) advanceBlock() {
	r.decoder.End()
	r.currentSBN = (r.currentSBN + 1) & 0xFFFFFF // SBN wraps in 24 bits
	r.emitCursor = 0
	r.sourceSlots = make([]*packet.Packet, r.cfg.SBLen)
	r.decoder.Begin(r.cfg.SBLen, r.cfg.RBLen)
	r.drainPending()
}

// drainPending moves any pre-queued packets belonging to currentSBN into
// the freshly (re)started block, dropping anything now stale.
func (r *Reader) drainPending() {
	if len(r.pending) == 0 {
		return
	}
	kept := r.pending[:0]
	for _, p := range r.pending {
		switch {
		case p.FEC.SBN == r.currentSBN:
			r.fillSlot(p)
		case packet.SBNAfter(p.FEC.SBN, r.currentSBN):
			kept = append(kept, p)
		default:
			p.Release()
		}
	}
	r.pending = kept
}

// shouldForceAdvance reports whether a pending packet is far enough ahead
// of the current block to force it open even though slots remain
// unresolved (§4.5 Block advancement trigger, "max blocks behind"
// threshold).
func (r *Reader) shouldForceAdvance() bool {
	if r.cfg.MaxBlocksBehind == 0 {
		return false
	}
	for _, p := range r.pending {
		diff := (p.FEC.SBN - r.currentSBN) & 0xFFFFFF
		if diff >= r.cfg.MaxBlocksBehind {
			return true
		}
	}
	return false
}
