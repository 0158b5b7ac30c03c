package audio

import (
	"encoding/binary"
	"fmt"
)

// Codec describes one entry of the payload-type registry (§6 Payload
// types) and its plug-in decode(payload)->samples contract (§1: "the
// sample-format codec registry ... is specified only by the interface the
// core consumes"). Decode converts one packet's raw payload into
// interleaved int16 samples.
type Codec struct {
	PayloadType uint8
	SampleRate  uint32
	Channels    int
	Decode      func(payload []byte) ([]int16, error)
	Encode      func(samples []int16) []byte
}

// SamplesPerPacket reports how many individual interleaved samples (all
// channels counted) a codec's nominal packet duration carries, given a
// duration in samples per channel at the codec's own sample rate.
func (c Codec) SamplesPerPacket(durationSamples uint32) int {
	return int(durationSamples) * c.Channels
}

// Registry maps RTP payload type to Codec (§6: "a small registry mapping
// the RTP payload_type field to (sample rate, channels, codec)").
type Registry struct {
	codecs map[uint8]Codec
}

// NewRegistry builds the default registry named in §6: 96 -> 44.1kHz
// stereo PCM, 97 -> 48kHz stereo PCM, plus the teacher's G.711 codecs
// (0=u-law, 8=A-law) wired in as additional plug-ins exercising
// github.com/zaf/g711 via decodeUlawSamples/decodeAlawSamples.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[uint8]Codec, 4)}
	r.Register(Codec{PayloadType: 96, SampleRate: 44100, Channels: 2, Decode: decodeLinearPCM, Encode: encodeLinearPCM})
	r.Register(Codec{PayloadType: 97, SampleRate: 48000, Channels: 2, Decode: decodeLinearPCM, Encode: encodeLinearPCM})
	r.Register(Codec{PayloadType: 0, SampleRate: 8000, Channels: 1, Decode: decodeUlawSamples, Encode: encodeUlawSamples})
	r.Register(Codec{PayloadType: 8, SampleRate: 8000, Channels: 1, Decode: decodeAlawSamples, Encode: encodeAlawSamples})
	return r
}

func (r *Registry) Register(c Codec) {
	r.codecs[c.PayloadType] = c
}

// Lookup returns the codec for payloadType, or ok=false if unregistered —
// a construction-time failure per §7 (callers abort session construction).
func (r *Registry) Lookup(payloadType uint8) (Codec, bool) {
	c, ok := r.codecs[payloadType]
	return c, ok
}

func decodeLinearPCM(payload []byte) ([]int16, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("audio: linear PCM payload has odd length %d", len(payload))
	}
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(payload[2*i : 2*i+2]))
	}
	return out, nil
}

func encodeLinearPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(out[2*i:2*i+2], uint16(s))
	}
	return out
}

