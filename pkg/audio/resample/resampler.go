// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts whole interleaved float32 buffers using linear interpolation
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample fills output with input converted to the output rate.
// input and output are interleaved. The last input frame is held when
// output runs past the end of input. Returns the number of samples written.
func (r *Resampler) Resample(input []float32, output []float32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}
	outputFrames := len(output) / r.channels

	for outIdx := 0; outIdx < outputFrames; outIdx++ {
		pos := float64(outIdx) * r.ratio
		idx := min(int(pos), inputFrames-1)
		next := min(idx+1, inputFrames-1)
		frac := float32(pos - float64(idx))
		if idx == inputFrames-1 {
			frac = 0
		}

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[idx*r.channels+ch]
			s2 := input[next*r.channels+ch]
			output[outIdx*r.channels+ch] = s1 + (s2-s1)*frac
		}
	}

	return outputFrames * r.channels
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(math.Round(float64(inputFrames) / r.ratio))
	return outputFrames * r.channels
}

// Convert returns input resampled from inputRate to outputRate. Input is
// returned unchanged when the rates match.
func Convert(input []float32, inputRate, outputRate, channels int) []float32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 {
		return input
	}
	r := New(inputRate, outputRate, channels)
	output := make([]float32, r.OutputSamplesNeeded(len(input)))
	r.Resample(input, output)
	return output
}
