// ABOUTME: Audio decoder package for whole-file decoding
// ABOUTME: Provides the Source interface and MP3, FLAC, WAV and Ogg Opus decoders
// Package decode turns audio files into in-memory PCM.
//
// Supports: MP3, FLAC, WAV (8/16/24/32-bit integer PCM), Ogg Opus
//
// Every decoder produces interleaved stereo float32 samples: mono input is
// duplicated into both channels and multichannel input keeps its first two
// channels.
//
// Example:
//
//	src := decode.NewFileSource()
//	pcm, err := src.Decode("take-3.flac")
package decode
