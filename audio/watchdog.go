package audio

import (
	"time"

	"github.com/rs/zerolog"
)

// WatchdogConfig configures the two terminal-condition detectors of §4.9.
type WatchdogConfig struct {
	FrameSize uint32

	// NoPlaybackTimeout is the number of consecutive samples' worth of
	// Empty frames that triggers the no-playback detector.
	NoPlaybackTimeout uint32

	// FrameStatusWindow is the sliding window size, in frames, the
	// broken-playback detector evaluates.
	FrameStatusWindow int
	// BrokenThreshold is the fraction of Broken frames within the
	// window that triggers the broken-playback detector.
	BrokenThreshold float64
}

// DefaultWatchdogConfig mirrors spec §8's watchdog-trigger scenario.
var DefaultWatchdogConfig = WatchdogConfig{
	FrameSize:         160,
	NoPlaybackTimeout: 16000, // 2s at an 8kHz clock
	FrameStatusWindow: 50,
	BrokenThreshold:   0.5,
}

// Watchdog wraps the terminal reader of a session's frame chain and
// distinguishes transient loss from terminal stream failure (§4.9).
// Grounded on the teacher's monitor_pcm.go sliding-window idiom (tracking
// recent samples to decide a go/no-go condition), generalized from an RMS
// silence check to the two independent detectors named in §4.9.
type Watchdog struct {
	upstream Reader
	cfg      WatchdogConfig

	consecutiveEmptySamples uint32

	window      []bool // true = Broken, ring buffer
	windowPos   int
	windowFull  bool
	brokenCount int

	noPlayback     bool
	brokenPlayback bool

	log zerolog.Logger
}

func NewWatchdog(upstream Reader, cfg WatchdogConfig) *Watchdog {
	return &Watchdog{
		upstream: upstream,
		cfg:      cfg,
		window:   make([]bool, cfg.FrameStatusWindow),
		log:      zerolog.Nop(),
	}
}

func (w *Watchdog) SetLogger(log zerolog.Logger) {
	w.log = log.With().Str("component", "audio.Watchdog").Logger()
}

// ReadFrame implements Reader, updating terminal-condition state as frames
// pass through. It keeps returning frames even after a terminal condition
// is latched; callers must check Terminal (or Update) separately, matching
// the pull/tick split of §4 ("pipeline tick ... periodically invokes
// session.update(now)").
func (w *Watchdog) ReadFrame(dst *Frame) error {
	if err := w.upstream.ReadFrame(dst); err != nil {
		return err
	}

	if dst.Flags.Has(FlagEmpty) {
		w.consecutiveEmptySamples += w.cfg.FrameSize
	} else {
		w.consecutiveEmptySamples = 0
	}
	if w.consecutiveEmptySamples > w.cfg.NoPlaybackTimeout {
		if !w.noPlayback {
			w.log.Warn().Msg("no-playback condition detected")
		}
		w.noPlayback = true
	}

	broken := dst.Flags.Has(FlagBroken)
	if w.windowFull && w.window[w.windowPos] {
		w.brokenCount--
	}
	w.window[w.windowPos] = broken
	if broken {
		w.brokenCount++
	}
	w.windowPos = (w.windowPos + 1) % len(w.window)
	if w.windowPos == 0 {
		w.windowFull = true
	}

	denom := len(w.window)
	if !w.windowFull {
		denom = w.windowPos
	}
	if denom > 0 && float64(w.brokenCount)/float64(denom) > w.cfg.BrokenThreshold {
		if !w.brokenPlayback {
			w.log.Warn().Msg("broken-playback condition detected")
		}
		w.brokenPlayback = true
	}

	return nil
}

// Terminal reports whether either detector has latched a terminal
// condition.
func (w *Watchdog) Terminal() bool {
	return w.noPlayback || w.brokenPlayback
}

// Update is the periodic tick hook invoked by the session dispatcher
// (§4 "pipeline tick"). It returns false once a terminal condition has
// been detected, signalling the caller to destroy the session.
func (w *Watchdog) Update(now time.Time) bool {
	return !w.Terminal()
}
