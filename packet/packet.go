// Package packet implements the receiver/sender media packet model: the
// immutable, optionally pool-backed container that flows through every stage of
// the pipeline (§3 Packet, §3 Source Block).
package packet

import (
	"net"
	"sync"
)

// Flags classify a packet for routing and downstream handling (§3 Packet).
type Flags uint8

const (
	// FlagAudio marks a plain RTP source packet.
	FlagAudio Flags = 1 << iota
	// FlagRepair marks an FEC repair packet.
	FlagRepair
	// FlagFEC marks a packet (source or repair) that carries FEC metadata.
	FlagFEC
	// FlagComposed marks a packet synthesized by the FEC decoder from a
	// recovered payload, rather than received directly off the wire.
	FlagComposed
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// FECHeader carries the FECFRAME payload ID fields (§3, §6). It is present
// only on packets belonging to a protected source block, source or repair.
type FECHeader struct {
	// SBN is the source block number. It wraps; comparisons use modular
	// "is-after" semantics, see SBNAfter.
	SBN uint32
	// SBLen is the number of source symbols in the block (k).
	SBLen uint16
	// ESI is the encoding symbol index within the block. Values
	// 0..SBLen-1 are source positions, SBLen..SBLen+RBLen-1 are repair
	// positions.
	ESI uint16
}

// Packet is an immutable, read-only-once-parsed container shared by pointer
// among pipeline stages (§3). Construction is the ingress parser's job;
// destruction happens implicitly when the last reference is dropped (no
// explicit refcounting is needed in Go — the garbage collector owns this).
type Packet struct {
	SourceID    uint32
	SeqNum      uint16
	Timestamp   uint32
	PayloadType uint8
	Marker      bool

	Flags Flags
	FEC   FECHeader // zero value if Flags has neither FlagFEC nor FlagRepair

	Payload []byte
	Addr    net.Addr

	// buf is the pool-owned backing array for Payload, returned to the
	// pool by Release. Packets that do not own pool memory (e.g.
	// synthesized in tests) leave this nil and Release is a no-op.
	buf []byte
	// pool is nil unless this Packet's Payload was drawn from a Pool.
	pool *Pool
}

// IsFEC reports whether the packet carries FEC metadata (source-in-block or
// repair).
func (p *Packet) IsFEC() bool {
	return p.Flags.Has(FlagFEC) || p.Flags.Has(FlagRepair)
}

// Release returns the packet's backing buffer to its pool, if any. Callers
// that retain a Packet past the point where all readers have finished with
// it should call Release exactly once.
func (p *Packet) Release() {
	if p.pool == nil {
		return
	}
	p.pool.putBuf(p.buf)
	p.buf = nil
	p.Payload = nil
	p.pool = nil
}

// SeqAfter reports whether a is strictly after b using 16-bit modular
// "is-after" comparison (§3 invariant: wrap on 16 bits, signed difference).
func SeqAfter(a, b uint16) bool {
	return int16(a-b) > 0
}

// SeqAfterEq reports whether a is after or equal to b, modularly.
func SeqAfterEq(a, b uint16) bool {
	return int16(a-b) >= 0
}

// SBNAfter reports whether a is strictly after b using 24-bit modular
// comparison (SBN wraps in 24 bits on the wire, see rtppkt payload ID).
func SBNAfter(a, b uint32) bool {
	const mask = 1 << 23
	diff := (a - b) & 0xFFFFFF
	return diff != 0 && diff < mask
}

// Pool is a process-global, fixed-size pool of raw byte buffers used for
// packet payloads (§5 Resource policy: "buffers are drawn from fixed-size
// pools ... allocation failures are surfaced as None/false, never fatal").
//
// It wraps sync.Pool, the idiomatic buffer-pool primitive used throughout
// the example pack (e.g. dgramPool / per-SSRC audio+video pools) rather than
// a hand-rolled allocator or third-party pool library.
type Pool struct {
	bufSize int
	pool    sync.Pool

	mu       sync.Mutex
	budget   int // max buffers checked out at once; <=0 means unbounded
	inFlight int
}

// NewPool creates a pool of buffers of bufSize bytes. maxBuffers bounds the
// number of buffers simultaneously checked out; a value <= 0 means
// unbounded (the pool may still grow/shrink via sync.Pool's GC-driven
// eviction).
func NewPool(bufSize, maxBuffers int) *Pool {
	p := &Pool{
		bufSize: bufSize,
		budget:  maxBuffers,
	}
	p.pool.New = func() any {
		b := make([]byte, p.bufSize)
		return &b
	}
	return p
}

// Get returns a buffer of length bufSize, or nil if the pool is
// exhausted (bounded pools only). Exhaustion is a transient failure (§7):
// callers must drop the packet and count it, never treat this as fatal.
func (p *Pool) Get() []byte {
	if p.budget > 0 {
		p.mu.Lock()
		if p.inFlight >= p.budget {
			p.mu.Unlock()
			return nil
		}
		p.inFlight++
		p.mu.Unlock()
	}
	bp := p.pool.Get().(*[]byte)
	return (*bp)[:p.bufSize]
}

func (p *Pool) putBuf(b []byte) {
	if b == nil {
		return
	}
	b = b[:cap(b)]
	p.pool.Put(&b)
	if p.budget > 0 {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}
}

// NewPacket allocates a Packet whose Payload is drawn from pool and sized
// to n bytes (n must be <= pool's bufSize). Returns nil if the pool is
// exhausted.
func NewPacket(pool *Pool, n int) *Packet {
	buf := pool.Get()
	if buf == nil {
		return nil
	}
	return &Packet{
		Payload: buf[:n],
		buf:     buf,
		pool:    pool,
	}
}
