// Package audio implements the depacketization, resampling, latency
// monitoring, and watchdog stages of the receiver frame-reader chain
// (§4.6-§4.9), plus the sender-side plug-in codec registry (§1, §6).
package audio

// FrameFlags summarize a frame's fill quality (§3 Frame).
type FrameFlags uint8

const (
	// FlagEmpty marks a frame containing no real audio (pure silence
	// fill because nothing was available at all).
	FlagEmpty FrameFlags = 1 << iota
	// FlagIncomplete marks a frame partially filled with silence due to
	// a gap, but not entirely empty.
	FlagIncomplete
	// FlagBroken marks a frame assembled under degraded conditions
	// (e.g. from recovered-but-stale data). None of the readers in this
	// module sets it; the Watchdog counts it when a frame carries it.
	FlagBroken
)

func (f FrameFlags) Has(flag FrameFlags) bool {
	return f&flag != 0
}

// Frame is a contiguous interleaved sample block, timestamped with the
// playback timestamp, which advances by exactly FrameSize samples per frame
// regardless of input loss (§3 invariant).
type Frame struct {
	Samples   []int16
	Timestamp uint32
	Flags     FrameFlags
}

// Reader is the pull-side interface every frame-producing stage
// implements: depacketizer, resampler, watchdog.
type Reader interface {
	ReadFrame(dst *Frame) error
}
