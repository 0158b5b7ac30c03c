package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDelayedReaderWithholdsUntilThreshold(t *testing.T) {
	q := NewSortedQueue(0)
	dr := NewDelayedReader(q, 160) // 160 samples threshold

	require.NoError(t, q.Write(&Packet{SeqNum: 1, Timestamp: 0}))
	p, err := dr.Read()
	require.NoError(t, err)
	require.Nil(t, p, "should withhold until buffered span reaches threshold")
	require.False(t, dr.Triggered())

	require.NoError(t, q.Write(&Packet{SeqNum: 2, Timestamp: 160}))
	p, err = dr.Read()
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, dr.Triggered())
	require.EqualValues(t, 1, p.SeqNum)
}

func TestDelayedReaderNeverRebuffers(t *testing.T) {
	q := NewSortedQueue(0)
	dr := NewDelayedReader(q, 160)
	require.NoError(t, q.Write(&Packet{SeqNum: 1, Timestamp: 0}))
	require.NoError(t, q.Write(&Packet{SeqNum: 2, Timestamp: 160}))

	_, err := dr.Read()
	require.NoError(t, err)
	require.True(t, dr.Triggered())

	// Queue drains fully below threshold, but DelayedReader must keep
	// forwarding transparently.
	p, err := dr.Read()
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = dr.Read()
	require.NoError(t, err)
	require.Nil(t, p) // queue empty, but not re-buffering
	require.True(t, dr.Triggered())
}

func TestPoolExhaustionReturnsNil(t *testing.T) {
	pool := NewPool(64, 1)
	p1 := NewPacket(pool, 10)
	require.NotNil(t, p1)
	p2 := NewPacket(pool, 10)
	require.Nil(t, p2, "pool should be exhausted after one checkout")

	p1.Release()
	p3 := NewPacket(pool, 10)
	require.NotNil(t, p3, "buffer should be reusable after Release")
}
