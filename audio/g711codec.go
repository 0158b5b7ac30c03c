package audio

import "github.com/zaf/g711"

// decodeUlawSamples and its encode/A-law counterparts below fulfill
// Codec.Decode/Encode's interleaved-int16 contract directly against
// github.com/zaf/g711's per-sample frame codec, for the registry's payload
// types 0 (u-law) and 8 (A-law) (§6 Payload types).
func decodeUlawSamples(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = g711.DecodeUlawFrame(b)
	}
	return out, nil
}

func encodeUlawSamples(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = g711.EncodeUlawFrame(s)
	}
	return out
}

func decodeAlawSamples(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = g711.DecodeAlawFrame(b)
	}
	return out, nil
}

func encodeAlawSamples(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = g711.EncodeAlawFrame(s)
	}
	return out
}
