// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PCM types and sample conversion functions
// Package audio provides the audio types shared by the decoders, the output
// backends and the playback engine.
//
//   - Format: describes an encoded stream (codec, sample rate, channels, bit depth)
//   - PCM: a decoded recording as interleaved stereo float32 samples
//
// Sample helpers convert integer PCM of any bit depth to float32 and back:
//
//	f := audio.SampleFromInt(v, 24)
//	s16 := audio.SampleToInt16(f)
package audio
