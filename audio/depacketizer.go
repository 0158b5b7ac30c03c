package audio

import (
	"math"

	"github.com/emiago/rocaudio/packet"
	"github.com/rs/zerolog"
)

// DepacketizerConfig configures gap-filling behavior (§4.6).
type DepacketizerConfig struct {
	FrameSize uint32 // samples per channel, per frame
	Channels  int
	// Beep fills gaps with a low-volume diagnostic tone instead of
	// silence when true.
	Beep bool
}

// Depacketizer converts validated media packets into a gap-filled sample
// stream (§4.6), grounded on the teacher's silence-injection idiom in
// audio/monitor_pcm.go (computing an elapsed-time gap and writing silence
// symbols to cover it) generalized from wall-clock gaps to RTP-timestamp
// gaps.
type Depacketizer struct {
	reader   packet.Reader
	registry *Registry
	cfg      DepacketizerConfig

	pending []int16

	haveTimestamp    bool
	expectedTS       uint32 // next expected source-clock timestamp
	playbackTS       uint32
	beepPhase        float64
	log              zerolog.Logger
}

func NewDepacketizer(reader packet.Reader, registry *Registry, cfg DepacketizerConfig) *Depacketizer {
	return &Depacketizer{
		reader:   reader,
		registry: registry,
		cfg:      cfg,
		log:      zerolog.Nop(),
	}
}

func (d *Depacketizer) SetLogger(log zerolog.Logger) {
	d.log = log.With().Str("component", "audio.Depacketizer").Logger()
}

// ReadFrame implements Reader.
func (d *Depacketizer) ReadFrame(dst *Frame) error {
	needed := int(d.cfg.FrameSize) * d.cfg.Channels

	for len(d.pending) < needed {
		p, err := d.reader.Read()
		if err != nil {
			return err
		}
		if p == nil {
			break // no more packets available right now (§5: non-blocking)
		}
		d.ingest(p)
	}

	switch {
	case len(d.pending) == 0:
		dst.Samples = d.fill(dst.Samples[:0], needed)
		dst.Flags = FlagEmpty
	case len(d.pending) < needed:
		got := len(d.pending)
		dst.Samples = append(dst.Samples[:0], d.pending...)
		dst.Samples = d.fill(dst.Samples, needed-got)
		dst.Flags = FlagIncomplete
		d.pending = d.pending[:0]
	default:
		dst.Samples = append(dst.Samples[:0], d.pending[:needed]...)
		d.pending = append([]int16(nil), d.pending[needed:]...)
		dst.Flags = 0
	}

	dst.Timestamp = d.playbackTS
	d.playbackTS += d.cfg.FrameSize // advances by exactly FrameSize regardless of loss (§3 invariant)
	return nil
}

func (d *Depacketizer) ingest(p *packet.Packet) {
	codec, ok := d.registry.Lookup(p.PayloadType)
	if !ok {
		d.log.Debug().Uint8("payloadType", p.PayloadType).Msg("unknown payload type, dropping packet")
		return
	}
	samples, err := codec.Decode(p.Payload)
	if err != nil {
		d.log.Debug().Err(err).Msg("decode failed, dropping packet")
		return
	}
	samplesPerChannel := uint32(len(samples) / max(1, d.cfg.Channels))

	if !d.haveTimestamp {
		d.haveTimestamp = true
		d.expectedTS = p.Timestamp
	}

	// Modular 32-bit signed delta: positive means p arrived after the
	// expected playback position (a gap to fill); negative means it
	// arrived early (shouldn't happen post-sort; handled defensively).
	delta := int32(p.Timestamp - d.expectedTS)
	switch {
	case delta > 0:
		d.pending = d.fill(d.pending, int(delta)*d.cfg.Channels)
	case delta < 0:
		skip := int(-delta) * d.cfg.Channels
		if skip >= len(samples) {
			return
		}
		samples = samples[skip:]
	}

	d.pending = append(d.pending, samples...)
	d.expectedTS = p.Timestamp + samplesPerChannel
}

// fill appends n samples of silence (or a diagnostic beep) to dst and
// returns the result.
func (d *Depacketizer) fill(dst []int16, n int) []int16 {
	if n <= 0 {
		return dst
	}
	if !d.cfg.Beep {
		for i := 0; i < n; i++ {
			dst = append(dst, 0)
		}
		return dst
	}
	const freqHz = 440.0
	const amplitude = 800 // low volume relative to int16 range, for audibility without being jarring
	step := 2 * math.Pi * freqHz / 8000.0
	for i := 0; i < n; i++ {
		dst = append(dst, int16(amplitude*math.Sin(d.beepPhase)))
		d.beepPhase += step
	}
	return dst
}
