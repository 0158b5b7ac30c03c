package fec

import (
	"math/rand"
	"testing"

	"github.com/emiago/rocaudio/packet"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

const testSymbolSize = 160

// fakeReader is a simple packet.Reader backed by a slice, draining FIFO.
type fakeReader struct {
	items []*packet.Packet
}

func (f *fakeReader) Read() (*packet.Packet, error) {
	if len(f.items) == 0 {
		return nil, nil
	}
	p := f.items[0]
	f.items = f.items[1:]
	return p, nil
}

func sourcePacket(t *testing.T, sbn uint32, esi uint16, sblen uint16, seq uint16, payload []byte) *packet.Packet {
	t.Helper()
	hdr := rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: seq, Timestamp: uint32(seq) * 160, SSRC: 1}
	buf := make([]byte, 12+len(payload))
	n, err := hdr.MarshalTo(buf)
	require.NoError(t, err)
	copy(buf[n:], payload)

	pr := rtppkt.NewParser(rtppkt.SchemeReedSolomon, nil)
	p, err := pr.ParseSource(buf[:n+len(payload)], nil, false)
	require.NoError(t, err)
	p.Flags |= packet.FlagFEC
	p.FEC = packet.FECHeader{SBN: sbn, SBLen: sblen, ESI: esi}
	return p
}

func repairPacket(sbn uint32, esi, sblen uint16, payload []byte) *packet.Packet {
	return &packet.Packet{
		Flags:   packet.FlagRepair | packet.FlagFEC,
		FEC:     packet.FECHeader{SBN: sbn, SBLen: sblen, ESI: esi},
		Payload: payload,
	}
}

func buildBlock(t *testing.T, sbn uint32, sblen, rblen int) (sourcePayloads [][]byte, sourcePkts, repairPkts []*packet.Packet) {
	t.Helper()
	r := rand.New(rand.NewSource(int64(sbn) + 1))
	sourcePayloads = make([][]byte, sblen)
	for i := range sourcePayloads {
		b := make([]byte, testSymbolSize)
		r.Read(b)
		sourcePayloads[i] = b
	}
	enc, err := NewRSEncoder(sblen, rblen, testSymbolSize)
	require.NoError(t, err)
	repair, err := enc.Encode(sourcePayloads)
	require.NoError(t, err)

	sourcePkts = make([]*packet.Packet, sblen)
	for i, payload := range sourcePayloads {
		seq := uint16(int(sbn)*sblen + i)
		sourcePkts[i] = sourcePacket(t, sbn, uint16(i), uint16(sblen), seq, payload)
	}
	repairPkts = make([]*packet.Packet, rblen)
	for i, payload := range repair {
		repairPkts[i] = repairPacket(sbn, uint16(sblen+i), uint16(sblen), payload)
	}
	return
}

func TestFECReaderRecoversDroppedSourcePackets(t *testing.T) {
	const sblen, rblen = 20, 10
	payloads, srcPkts, repPkts := buildBlock(t, 0, sblen, rblen)

	var srcIn, repIn []*packet.Packet
	dropped := map[int]bool{3: true, 7: true, 12: true}
	for i, p := range srcPkts {
		if dropped[i] {
			continue
		}
		srcIn = append(srcIn, p)
	}
	repIn = append(repIn, repPkts...)

	dec := NewRSDecoder(testSymbolSize)
	pr := rtppkt.NewParser(rtppkt.SchemeReedSolomon, nil)
	reader := NewReader(Config{SBLen: sblen, RBLen: rblen, MaxBlocksBehind: 4}, dec,
		&fakeReader{items: srcIn}, &fakeReader{items: repIn}, pr)

	for i := 0; i < sblen; i++ {
		p, err := reader.Read()
		require.NoError(t, err)
		require.NotNil(t, p, "esi %d should be delivered", i)
		require.Equal(t, payloads[i], p.Payload)
	}
}

func TestFECReaderEmitsNullsOnExcessiveLoss(t *testing.T) {
	const sblen, rblen = 20, 10
	_, srcPkts, repPkts := buildBlock(t, 0, sblen, rblen)

	// Drop 11 symbols: more than rblen can repair.
	var srcIn []*packet.Packet
	dropEveryOther := 0
	for i, p := range srcPkts {
		if (i%2 == 0 || i == 1) && dropEveryOther < 11 {
			dropEveryOther++
			continue
		}
		srcIn = append(srcIn, p)
	}

	// Next block's first source packet forces advancement past any
	// residual unresolved slots.
	_, nextSrcPkts, _ := buildBlock(t, 1, sblen, rblen)
	srcIn = append(srcIn, nextSrcPkts...)

	dec := NewRSDecoder(testSymbolSize)
	pr := rtppkt.NewParser(rtppkt.SchemeReedSolomon, nil)
	reader := NewReader(Config{SBLen: sblen, RBLen: rblen, MaxBlocksBehind: 1}, dec,
		&fakeReader{items: srcIn}, &fakeReader{items: repPkts}, pr)

	nulls := 0
	recovered := 0
	for i := 0; i < sblen; i++ {
		p, err := reader.Read()
		require.NoError(t, err)
		if p == nil {
			nulls++
		} else {
			recovered++
		}
	}
	require.Greater(t, nulls, 0, "expected some gaps given 11 dropped symbols with only 10 repair symbols")
}

func TestFECReaderBlockBoundaryIndependence(t *testing.T) {
	const sblen, rblen = 10, 5
	payloadsA, srcA, repA := buildBlock(t, 0, sblen, rblen)
	payloadsB, srcB, repB := buildBlock(t, 1, sblen, rblen)

	run := func(srcOrder []*packet.Packet, repOrder []*packet.Packet) [][]byte {
		dec := NewRSDecoder(testSymbolSize)
		pr := rtppkt.NewParser(rtppkt.SchemeReedSolomon, nil)
		reader := NewReader(Config{SBLen: sblen, RBLen: rblen, MaxBlocksBehind: 4}, dec,
			&fakeReader{items: srcOrder}, &fakeReader{items: repOrder}, pr)
		var out [][]byte
		for i := 0; i < 2*sblen; i++ {
			p, err := reader.Read()
			require.NoError(t, err)
			if p != nil {
				out = append(out, append([]byte(nil), p.Payload...))
			}
		}
		return out
	}

	// Order 1: block A fully arrives, then block B.
	var src1, rep1 []*packet.Packet
	src1 = append(src1, srcA...)
	src1 = append(src1, srcB...)
	rep1 = append(rep1, repA...)
	rep1 = append(rep1, repB...)
	out1 := run(src1, rep1)

	// Order 2: block B's packets interleaved before block A completes.
	var src2, rep2 []*packet.Packet
	src2 = append(src2, srcA[:5]...)
	src2 = append(src2, srcB...)
	src2 = append(src2, srcA[5:]...)
	rep2 = append(rep2, repA...)
	rep2 = append(rep2, repB...)
	out2 := run(src2, rep2)

	require.Equal(t, len(payloadsA)+len(payloadsB), len(out1))
	require.Equal(t, out1, out2, "output must not depend on arrival interleaving within the sorted-queue window")
}
