// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, decoded PCM buffers and sample conversions
package audio

import (
	"math"
	"time"
)

// Channels is the channel count of every decoded PCM buffer (stereo).
const Channels = 2

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM is a fully decoded recording held in memory.
type PCM struct {
	Samples    []float32 // interleaved stereo, [-1, 1]
	SampleRate int
}

// Frames returns the number of stereo frames in the buffer
func (p *PCM) Frames() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Samples) / Channels)
}

// Duration returns the playing time of the buffer
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float32 sample to int16, clipping out-of-range input
func SampleToInt16(sample float32) int16 {
	v := math.Round(float64(sample) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// SampleFromInt converts a signed integer sample of the given bit depth to float32
func SampleFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}
