package fec

import "fmt"

// LDPCDecoder implements the non-optimal LDPC-Staircase block codec named
// in §4.4. There is no established Go library for LDPC-Staircase anywhere
// in the retrieved example pack or the wider ecosystem (unlike
// Reed-Solomon, which github.com/klauspost/reedsolomon covers); this is
// implemented directly against the abstract BlockDecoder contract using
// only XOR parity over byte buffers, matching the original roc_fec
// description of LDPC-Staircase as a simple structured parity-check code
// rather than a full belief-propagation decoder.
//
// Each repair symbol i is defined by a staircase equation:
//
//	repair[i] = XOR(source[j] for j in equation i's source set) XOR repair[i-1]
//
// (repair[-1] is the zero vector). Decoding solves each equation whose
// terms have exactly one unknown, repeating until no equation makes
// progress — so, unlike Reed-Solomon, receiving exactly sblen symbols does
// not guarantee full recovery: which sblen symbols arrived matters. This is
// precisely the "non-optimal" behavior §4.4 requires callers to tolerate.
type LDPCDecoder struct {
	sblen, rblen, symbolSize int
	equations                []ldpcEquation

	values [][]byte
	known  []bool
}

// ldpcEquation lists the indices (0..sblen+rblen-1, source then repair)
// that XOR to zero, including the repair symbol itself and, for i>0, the
// previous repair symbol (the staircase chain).
type ldpcEquation struct {
	terms []int
}

func NewLDPCDecoder(symbolSize int) *LDPCDecoder {
	return &LDPCDecoder{symbolSize: symbolSize}
}

func (d *LDPCDecoder) Begin(sblen, rblen int) error {
	d.sblen = sblen
	d.rblen = rblen
	d.equations = buildStaircaseEquations(sblen, rblen)
	d.values = make([][]byte, sblen+rblen)
	d.known = make([]bool, sblen+rblen)
	return nil
}

func (d *LDPCDecoder) Set(index int, buf []byte) {
	if d.known[index] {
		return
	}
	cp := make([]byte, d.symbolSize)
	copy(cp, buf)
	d.values[index] = cp
	d.known[index] = true
	d.solve()
}

func (d *LDPCDecoder) solve() {
	progress := true
	for progress {
		progress = false
		for _, eq := range d.equations {
			unknownIdx := -1
			unknownCount := 0
			for _, t := range eq.terms {
				if !d.known[t] {
					unknownCount++
					unknownIdx = t
				}
			}
			if unknownCount != 1 {
				continue
			}
			acc := make([]byte, d.symbolSize)
			for _, t := range eq.terms {
				if t == unknownIdx {
					continue
				}
				xorInto(acc, d.values[t])
			}
			d.values[unknownIdx] = acc
			d.known[unknownIdx] = true
			progress = true
		}
	}
}

func (d *LDPCDecoder) Repair(index int) []byte {
	if index >= len(d.known) || !d.known[index] {
		return nil
	}
	return d.values[index]
}

func (d *LDPCDecoder) End() {
	d.values = nil
	d.known = nil
	d.equations = nil
}

// buildStaircaseEquations deterministically assigns each repair symbol a
// small, fixed-degree set of source-symbol dependencies, in the classic
// staircase pattern (RFC 5170 §x, simplified): equation i depends on a
// sliding window of source indices plus the chain to repair i-1.
func buildStaircaseEquations(sblen, rblen int) []ldpcEquation {
	if sblen == 0 || rblen == 0 {
		return nil
	}
	degree := 3
	if degree > sblen {
		degree = sblen
	}
	eqs := make([]ldpcEquation, rblen)
	for i := 0; i < rblen; i++ {
		terms := make([]int, 0, degree+2)
		for k := 0; k < degree; k++ {
			// A simple, deterministic, well-spread index sequence —
			// not a cryptographic hash, just enough to avoid every
			// repair symbol depending on the same source window.
			idx := (i*degree + k*7 + i*i) % sblen
			terms = append(terms, idx)
		}
		terms = dedupInts(terms)
		terms = append(terms, sblen+i) // the repair symbol itself
		if i > 0 {
			terms = append(terms, sblen+i-1) // staircase chain
		}
		eqs[i] = ldpcEquation{terms: terms}
	}
	return eqs
}

func dedupInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func xorInto(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// LDPCEncoder is the sender-side mirror: repair symbols are computable
// directly, forward, from the same staircase equations (§6 mirror).
type LDPCEncoder struct {
	sblen, rblen, symbolSize int
	equations                []ldpcEquation
}

func NewLDPCEncoder(sblen, rblen, symbolSize int) *LDPCEncoder {
	return &LDPCEncoder{
		sblen:      sblen,
		rblen:      rblen,
		symbolSize: symbolSize,
		equations:  buildStaircaseEquations(sblen, rblen),
	}
}

func (e *LDPCEncoder) Encode(source [][]byte) ([][]byte, error) {
	if len(source) != e.sblen {
		return nil, fmt.Errorf("fec: ldpc encode expected %d source symbols, got %d", e.sblen, len(source))
	}
	repair := make([][]byte, e.rblen)
	for i, eq := range e.equations {
		acc := make([]byte, e.symbolSize)
		for _, t := range eq.terms {
			switch {
			case t < e.sblen:
				xorInto(acc, source[t])
			case t == e.sblen+i:
				// the repair symbol itself; nothing to XOR in
				// while computing it forward
			default:
				// previous repair symbol in the staircase chain
				xorInto(acc, repair[t-e.sblen])
			}
		}
		repair[i] = acc
	}
	return repair, nil
}

