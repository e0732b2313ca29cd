// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 streams to stereo float32 PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/soittokone/soittokone-go/pkg/audio"
)

// DecodeMP3 decodes an entire MP3 stream. go-mp3 always produces 16-bit
// little-endian stereo.
func DecodeMP3(r io.Reader) (*audio.PCM, audio.Format, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	format := audio.Format{
		Codec:      "mp3",
		SampleRate: dec.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, format, fmt.Errorf("mp3 decode error: %w", err)
	}

	// Drop a trailing partial frame, if any
	raw = raw[:len(raw)-len(raw)%4]

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	return &audio.PCM{Samples: samples, SampleRate: format.SampleRate}, format, nil
}
