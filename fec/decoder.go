// Package fec implements the block erasure-code engine (§4.4) and the block
// assembly state machine that drives it (§4.5) — the two largest
// components of the system (45% of the core budget combined).
package fec

import "errors"

// ErrBeginFailed is returned by BlockDecoder.Begin when resizing internal
// tables fails, e.g. allocation failure (§4.4 Failure).
var ErrBeginFailed = errors.New("fec: begin failed")

// BlockDecoder is the abstract block erasure-code decoder contract (§4.4).
// It is deliberately narrow: callers (the Reader state machine) own all
// packet-level bookkeeping; a BlockDecoder only ever sees raw symbol
// buffers indexed by ESI.
//
// Implementations are classified optimal (RSDecoder: recovers any source
// symbol once exactly SBLen of SBLen+RBLen symbols are received) or
// non-optimal (LDPCDecoder: may need more than SBLen, varying per block).
// Callers must not assume completion at SBLen received for non-optimal
// codecs — they must keep calling Repair as new symbols arrive.
type BlockDecoder interface {
	// Begin configures the decoder for a block shape. Idempotent if the
	// shape (sblen, rblen) is unchanged from the last Begin/End cycle.
	Begin(sblen, rblen int) error

	// Set registers a received symbol at index (source if index < sblen,
	// repair otherwise). buf must be exactly the configured symbol size.
	// Setting the same index twice within a block is a programmer error.
	// May trigger incremental decoding.
	Set(index int, buf []byte)

	// Repair returns the symbol at index — received or reconstructed —
	// or nil if it cannot yet be reconstructed. The returned slice is
	// only guaranteed to outlive the caller's current use; callers that
	// must keep it across a decoder.End() call must copy it out first
	// (§4.4 Memory model).
	Repair(index int) []byte

	// End tears down block state and releases internal buffers.
	End()
}

// BlockEncoder is the sender-side mirror of BlockDecoder (§6 "Symmetric
// sender side").
type BlockEncoder interface {
	// Encode computes RBLen repair symbols from SBLen source symbols, all
	// of size symbolSize. Returns the repair symbols.
	Encode(source [][]byte) (repair [][]byte, err error)
}
