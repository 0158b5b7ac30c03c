package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// sineReader emits frames of a fixed amplitude sine tone.
type sineReader struct {
	freq       float64
	sampleRate float64
	channels   int
	phase      float64
}

func (s *sineReader) ReadFrame(dst *Frame) error {
	const frameSize = 160
	samples := make([]int16, frameSize*s.channels)
	step := 2 * math.Pi * s.freq / s.sampleRate
	for i := 0; i < frameSize; i++ {
		v := int16(8000 * math.Sin(s.phase))
		for ch := 0; ch < s.channels; ch++ {
			samples[i*s.channels+ch] = v
		}
		s.phase += step
	}
	dst.Samples = samples
	dst.Flags = 0
	return nil
}

func TestResamplerPassthroughAtUnityScaling(t *testing.T) {
	src := &sineReader{freq: 440, sampleRate: 8000, channels: 1}
	cfg := ResamplerConfig{WindowSize: 8, WindowInterp: 32, FrameSize: 160, Channels: 1}
	r := NewResampler(src, cfg)

	var f Frame
	for i := 0; i < 10; i++ {
		require.NoError(t, r.ReadFrame(&f))
		require.Len(t, f.Samples, 160)
	}
}

func TestResamplerProducesFixedFrameSizeUnderScaling(t *testing.T) {
	src := &sineReader{freq: 300, sampleRate: 8000, channels: 2}
	cfg := ResamplerConfig{WindowSize: 8, WindowInterp: 32, FrameSize: 160, Channels: 2}
	r := NewResampler(src, cfg)
	r.SetScaling(1.01)

	var f Frame
	for i := 0; i < 20; i++ {
		require.NoError(t, r.ReadFrame(&f))
		require.Len(t, f.Samples, 160*2, "output frame size must stay fixed regardless of scaling ratio")
	}
}

func TestResamplerSlowerScalingStillProducesFixedFrames(t *testing.T) {
	src := &sineReader{freq: 300, sampleRate: 8000, channels: 1}
	cfg := ResamplerConfig{WindowSize: 8, WindowInterp: 32, FrameSize: 160, Channels: 1}
	r := NewResampler(src, cfg)
	r.SetScaling(0.98)

	var f Frame
	for i := 0; i < 20; i++ {
		require.NoError(t, r.ReadFrame(&f))
		require.Len(t, f.Samples, 160)
	}
}

func TestSincKernelUnityAtCenter(t *testing.T) {
	kernel := buildSincKernel(8, 32)
	// At fractional offset 0, the nearest tap (just left of center,
	// index windowSize-1) should dominate and the row should sum to ~1
	// after normalization.
	row := kernel[0]
	sum := 0.0
	for _, w := range row {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}
