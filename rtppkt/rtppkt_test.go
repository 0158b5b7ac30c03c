package rtppkt

import (
	"testing"

	"github.com/emiago/rocaudio/packet"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestMarshalParseSourceRoundTrip(t *testing.T) {
	hdr := rtp.Header{
		Version:        2,
		PayloadType:    96,
		SequenceNumber: 42,
		Timestamp:      8000,
		SSRC:           0xCAFEBABE,
	}
	fec := packet.FECHeader{SBN: 7, SBLen: 20, ESI: 3}
	payload := []byte{1, 2, 3, 4}

	buf := make([]byte, 1500)
	n, err := MarshalSource(hdr, &fec, payload, buf)
	require.NoError(t, err)

	pr := NewParser(SchemeReedSolomon, nil)
	p, err := pr.ParseSource(buf[:n], nil, true)
	require.NoError(t, err)
	require.EqualValues(t, 42, p.SeqNum)
	require.EqualValues(t, 8000, p.Timestamp)
	require.EqualValues(t, 96, p.PayloadType)
	require.EqualValues(t, 7, p.FEC.SBN)
	require.EqualValues(t, 20, p.FEC.SBLen)
	require.EqualValues(t, 3, p.FEC.ESI)
	require.Equal(t, payload, p.Payload)
}

func TestMarshalParseRepairRoundTripRS(t *testing.T) {
	fec := packet.FECHeader{SBN: 100, SBLen: 20, ESI: 25}
	payload := []byte{9, 9, 9}
	buf := make([]byte, 100)
	n, err := MarshalRepair(SchemeReedSolomon, fec, payload, buf)
	require.NoError(t, err)

	pr := NewParser(SchemeReedSolomon, nil)
	p, err := pr.ParseRepair(buf[:n], nil)
	require.NoError(t, err)
	require.EqualValues(t, 100, p.FEC.SBN)
	require.EqualValues(t, 25, p.FEC.ESI)
	require.EqualValues(t, 100, p.SourceID)
	require.EqualValues(t, 25, p.SeqNum)
	require.Equal(t, payload, p.Payload)
	require.True(t, p.Flags.Has(packet.FlagRepair))
}

func TestMarshalParseRepairRoundTripLDPCFooter(t *testing.T) {
	fec := packet.FECHeader{SBN: 100, SBLen: 20, ESI: 25}
	payload := []byte{9, 9, 9}
	buf := make([]byte, 100)
	n, err := MarshalRepair(SchemeLDPCStaircase, fec, payload, buf)
	require.NoError(t, err)

	pr := NewParser(SchemeLDPCStaircase, nil)
	p, err := pr.ParseRepair(buf[:n], nil)
	require.NoError(t, err)
	require.EqualValues(t, 100, p.FEC.SBN)
	require.Equal(t, payload, p.Payload)
}

func TestSBNWrapsIn24Bits(t *testing.T) {
	fec := packet.FECHeader{SBN: 0xFFFFFF + 5, SBLen: 1, ESI: 0}
	payload := []byte{1}
	buf := make([]byte, 20)
	n, err := MarshalRepair(SchemeReedSolomon, fec, payload, buf)
	require.NoError(t, err)

	pr := NewParser(SchemeReedSolomon, nil)
	p, err := pr.ParseRepair(buf[:n], nil)
	require.NoError(t, err)
	require.EqualValues(t, 4, p.FEC.SBN)
}
