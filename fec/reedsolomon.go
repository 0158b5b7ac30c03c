package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// RSDecoder is the optimal block decoder (§4.4, §4.9 Open Question is moot
// here): Reed-Solomon over GF(2^8), grounded on the same
// github.com/klauspost/reedsolomon erasure-shard library used by the
// kcptun FEC layer in the retrieved example pack.
type RSDecoder struct {
	enc        reedsolomon.Encoder
	sblen      int
	rblen      int
	symbolSize int
	shards     [][]byte
	have       []bool
	haveCount  int
	decoded    bool
}

// NewRSDecoder creates an RS decoder for symbols of symbolSize bytes.
func NewRSDecoder(symbolSize int) *RSDecoder {
	return &RSDecoder{symbolSize: symbolSize}
}

func (d *RSDecoder) Begin(sblen, rblen int) error {
	if d.enc != nil && d.sblen == sblen && d.rblen == rblen {
		d.resetShards()
		return nil
	}
	enc, err := reedsolomon.New(sblen, rblen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBeginFailed, err)
	}
	d.enc = enc
	d.sblen = sblen
	d.rblen = rblen
	d.resetShards()
	return nil
}

func (d *RSDecoder) resetShards() {
	total := d.sblen + d.rblen
	d.shards = make([][]byte, total)
	d.have = make([]bool, total)
	d.haveCount = 0
	d.decoded = false
}

func (d *RSDecoder) Set(index int, buf []byte) {
	if d.have[index] {
		return // programmer error per contract; tolerate idempotent re-set
	}
	cp := make([]byte, d.symbolSize)
	copy(cp, buf)
	d.shards[index] = cp
	d.have[index] = true
	d.haveCount++
	d.decoded = false
	d.tryDecode()
}

func (d *RSDecoder) tryDecode() {
	if d.decoded || d.haveCount < d.sblen {
		return
	}
	// Reconstruct fills nil shards in place; present shards are left
	// untouched.
	if err := d.enc.Reconstruct(d.shards); err != nil {
		// Not enough information yet or shard sizes mismatched; try
		// again as more symbols arrive.
		return
	}
	d.decoded = true
}

func (d *RSDecoder) Repair(index int) []byte {
	if index >= len(d.shards) {
		return nil
	}
	if d.have[index] {
		return d.shards[index]
	}
	if !d.decoded {
		d.tryDecode()
	}
	if d.decoded {
		return d.shards[index]
	}
	return nil
}

func (d *RSDecoder) End() {
	d.shards = nil
	d.have = nil
	d.haveCount = 0
	d.decoded = false
}

// RSEncoder is the sender-side Reed-Solomon repair-symbol generator (§6
// mirror).
type RSEncoder struct {
	enc        reedsolomon.Encoder
	sblen      int
	rblen      int
	symbolSize int
}

func NewRSEncoder(sblen, rblen, symbolSize int) (*RSEncoder, error) {
	enc, err := reedsolomon.New(sblen, rblen)
	if err != nil {
		return nil, fmt.Errorf("fec: new RS encoder: %w", err)
	}
	return &RSEncoder{enc: enc, sblen: sblen, rblen: rblen, symbolSize: symbolSize}, nil
}

// Encode computes rblen repair symbols from exactly sblen source symbols,
// each symbolSize bytes (zero-padded by the caller if shorter).
func (e *RSEncoder) Encode(source [][]byte) ([][]byte, error) {
	if len(source) != e.sblen {
		return nil, fmt.Errorf("fec: expected %d source symbols, got %d", e.sblen, len(source))
	}
	shards := make([][]byte, e.sblen+e.rblen)
	copy(shards, source)
	for i := e.sblen; i < len(shards); i++ {
		shards[i] = make([]byte, e.symbolSize)
	}
	if err := e.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("fec: RS encode: %w", err)
	}
	return shards[e.sblen:], nil
}
