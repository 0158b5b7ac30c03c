package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLookupKnownPayloadTypes(t *testing.T) {
	r := NewRegistry()

	for _, pt := range []uint8{96, 97, 0, 8} {
		c, ok := r.Lookup(pt)
		require.True(t, ok, "payload type %d", pt)
		require.Equal(t, pt, c.PayloadType)
	}

	_, ok := r.Lookup(200)
	require.False(t, ok)
}

func TestUlawRoundTripIsLossyButBounded(t *testing.T) {
	samples := []int16{0, 100, -100, 3000, -3000, 32767, -32768}
	encoded := encodeUlawSamples(samples)
	decoded, err := decodeUlawSamples(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(samples))
	for i, s := range samples {
		require.InDelta(t, s, decoded[i], 512, "sample %d", i)
	}
}

func TestAlawRoundTripIsLossyButBounded(t *testing.T) {
	samples := []int16{0, 100, -100, 3000, -3000, 32767, -32768}
	encoded := encodeAlawSamples(samples)
	decoded, err := decodeAlawSamples(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(samples))
	for i, s := range samples {
		require.InDelta(t, s, decoded[i], 512, "sample %d", i)
	}
}
