// ABOUTME: WAV audio decoder
// ABOUTME: Decodes integer PCM WAV files to stereo float32 PCM
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/soittokone/soittokone-go/pkg/audio"
)

// wavFormatPCM is the WAVE_FORMAT_PCM format tag
const wavFormatPCM = 1

// DecodeWAV decodes an entire integer PCM WAV file
func DecodeWAV(r io.ReadSeeker) (*audio.PCM, audio.Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, audio.Format{}, fmt.Errorf("not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, audio.Format{}, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("wav decode error: %w", err)
	}

	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if format.Channels == 0 {
		return nil, format, fmt.Errorf("WAV file has no channels")
	}

	// 8-bit WAV samples are unsigned
	offset := 0
	if format.BitDepth == 8 {
		offset = -128
	}

	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = audio.SampleFromInt(int32(v+offset), format.BitDepth)
	}

	samples := appendStereo(make([]float32, 0, len(data)/format.Channels*audio.Channels), data, format.Channels)
	return &audio.PCM{Samples: samples, SampleRate: format.SampleRate}, format, nil
}
