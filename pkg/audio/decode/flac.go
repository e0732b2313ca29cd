// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC streams frame by frame to stereo float32 PCM
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/soittokone/soittokone-go/pkg/audio"
)

// DecodeFLAC decodes an entire FLAC stream
func DecodeFLAC(r io.Reader) (*audio.PCM, audio.Format, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer func() { _ = stream.Close() }()

	info := stream.Info
	format := audio.Format{
		Codec:      "flac",
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   int(info.BitsPerSample),
	}
	if format.Channels == 0 {
		return nil, format, fmt.Errorf("FLAC stream has no channels")
	}

	samples := make([]float32, 0, int(info.NSamples)*audio.Channels)
	frameBuf := make([]float32, 0, 4096*format.Channels)

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, format, fmt.Errorf("FLAC frame error: %w", err)
		}

		frameBuf = frameBuf[:0]
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < format.Channels; ch++ {
				frameBuf = append(frameBuf, audio.SampleFromInt(frame.Subframes[ch].Samples[i], format.BitDepth))
			}
		}
		samples = appendStereo(samples, frameBuf, format.Channels)
	}

	return &audio.PCM{Samples: samples, SampleRate: format.SampleRate}, format, nil
}
