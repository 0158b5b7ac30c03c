package sender

import (
	"math/rand"
	"net"
	"testing"

	"github.com/emiago/rocaudio/fec"
	"github.com/emiago/rocaudio/rtppkt"
	"github.com/stretchr/testify/require"
)

const testSymbolSize = 160

// pipeConn adapts one end of net.Pipe to satisfy net.Conn for Writer, and
// lets the test read back whatever was written without a real socket.
func pipeConn(t *testing.T) (client, server net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	return c, s
}

func TestPacketizerAdvancesSequenceAndTimestamp(t *testing.T) {
	p := NewPacketizer(96)
	payload := make([]byte, 320)

	pkt1 := p.Packetize(payload, 160)
	pkt2 := p.Packetize(payload, 160)

	require.True(t, pkt1.Marker, "first packet must set the marker bit")
	require.False(t, pkt2.Marker)
	require.Equal(t, pkt1.SequenceNumber+1, pkt2.SequenceNumber)
	require.Equal(t, pkt1.Timestamp+160, pkt2.Timestamp)
	require.Equal(t, pkt1.SSRC, pkt2.SSRC)
}

func TestWriterFlushesBlockAndWritesRepairPackets(t *testing.T) {
	const sblen, rblen = 4, 2
	enc, err := fec.NewRSEncoder(sblen, rblen, testSymbolSize)
	require.NoError(t, err)

	srcClient, srcServer := pipeConn(t)
	repClient, repServer := pipeConn(t)
	defer srcClient.Close()
	defer repClient.Close()

	w := NewWriter(WriterConfig{SBLen: sblen, RBLen: rblen, SymbolSize: testSymbolSize, Scheme: rtppkt.SchemeReedSolomon},
		enc, srcClient, repClient)

	p := NewPacketizer(96)
	r := rand.New(rand.NewSource(7))

	srcRead := make(chan []byte, sblen)
	go func() {
		buf := make([]byte, 1500)
		for i := 0; i < sblen; i++ {
			n, err := srcServer.Read(buf)
			if err != nil {
				return
			}
			cp := append([]byte(nil), buf[:n]...)
			srcRead <- cp
		}
	}()
	repRead := make(chan []byte, rblen)
	go func() {
		buf := make([]byte, 1500)
		for i := 0; i < rblen; i++ {
			n, err := repServer.Read(buf)
			if err != nil {
				return
			}
			cp := append([]byte(nil), buf[:n]...)
			repRead <- cp
		}
	}()

	for i := 0; i < sblen; i++ {
		payload := make([]byte, testSymbolSize)
		r.Read(payload)
		pkt := p.Packetize(payload, testSymbolSize)
		require.NoError(t, w.WritePacket(pkt))
	}

	for i := 0; i < sblen; i++ {
		buf := <-srcRead
		require.NotEmpty(t, buf)
	}
	for i := 0; i < rblen; i++ {
		buf := <-repRead
		require.NotEmpty(t, buf)
	}
}

func TestNewBlockEncoderRejectsUnknownScheme(t *testing.T) {
	_, err := NewBlockEncoder(rtppkt.Scheme(99), 4, 2, testSymbolSize)
	require.Error(t, err)
}
