package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortedQueueOrdersBySequence(t *testing.T) {
	q := NewSortedQueue(0)
	require.NoError(t, q.Write(&Packet{SeqNum: 5}))
	require.NoError(t, q.Write(&Packet{SeqNum: 1}))
	require.NoError(t, q.Write(&Packet{SeqNum: 3}))

	p, err := q.Read()
	require.NoError(t, err)
	require.EqualValues(t, 1, p.SeqNum)

	p, err = q.Read()
	require.NoError(t, err)
	require.EqualValues(t, 3, p.SeqNum)

	p, err = q.Read()
	require.NoError(t, err)
	require.EqualValues(t, 5, p.SeqNum)
}

func TestSortedQueueDropsDuplicates(t *testing.T) {
	q := NewSortedQueue(0)
	require.NoError(t, q.Write(&Packet{SourceID: 1, SeqNum: 5}))
	require.NoError(t, q.Write(&Packet{SourceID: 1, SeqNum: 5}))
	require.Equal(t, 1, q.Size())
}

func TestSortedQueueHandlesWrap(t *testing.T) {
	q := NewSortedQueue(0)
	require.NoError(t, q.Write(&Packet{SeqNum: 0xFFF0}))
	require.NoError(t, q.Write(&Packet{SeqNum: 0x0005}))
	require.NoError(t, q.Write(&Packet{SeqNum: 0xFFFE}))

	first, _ := q.Read()
	require.EqualValues(t, 0xFFF0, first.SeqNum)
	second, _ := q.Read()
	require.EqualValues(t, 0xFFFE, second.SeqNum)
	third, _ := q.Read()
	require.EqualValues(t, 0x0005, third.SeqNum)
}

func TestSortedQueueBoundedDropsOnFull(t *testing.T) {
	q := NewSortedQueue(2)
	require.NoError(t, q.Write(&Packet{SeqNum: 1}))
	require.NoError(t, q.Write(&Packet{SeqNum: 2}))
	require.NoError(t, q.Write(&Packet{SeqNum: 3}))
	require.Equal(t, 2, q.Size())
}

func TestSeqAfterWraps(t *testing.T) {
	require.True(t, SeqAfter(0x0001, 0xFFFF))
	require.False(t, SeqAfter(0xFFFF, 0x0001))
	require.True(t, SeqAfter(5, 3))
}

func TestSBNAfterWraps(t *testing.T) {
	require.True(t, SBNAfter(0x000001, 0xFFFFFF))
	require.False(t, SBNAfter(0xFFFFFF, 0x000001))
}
