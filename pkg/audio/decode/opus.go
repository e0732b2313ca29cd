// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg-encapsulated Opus files to stereo float32 PCM at 48kHz
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/soittokone/soittokone-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// opusSampleRate is the rate libopusfile always decodes at
const opusSampleRate = 48000

// Max frame size (120ms at 48kHz) per channel
const opusMaxFrame = 5760

var opusHeadMagic = []byte("OpusHead")

// DecodeOpus decodes an entire Ogg Opus stream
func DecodeOpus(r io.Reader) (*audio.PCM, audio.Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to read opus file: %w", err)
	}

	channels, err := opusChannels(data)
	if err != nil {
		return nil, audio.Format{}, err
	}

	format := audio.Format{
		Codec:      "opus",
		SampleRate: opusSampleRate,
		Channels:   channels,
		BitDepth:   16,
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("failed to create opus stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	pcm := make([]float32, opusMaxFrame*channels)
	var samples []float32
	for {
		n, err := stream.ReadFloat32(pcm)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, format, fmt.Errorf("opus decode failed: %w", err)
		}
		if n == 0 {
			break
		}
		samples = appendStereo(samples, pcm[:n*channels], channels)
	}

	return &audio.PCM{Samples: samples, SampleRate: opusSampleRate}, format, nil
}

// opusChannels reads the output channel count from the OpusHead packet
func opusChannels(data []byte) (int, error) {
	i := bytes.Index(data, opusHeadMagic)
	if i < 0 || i+10 > len(data) {
		return 0, fmt.Errorf("%w: missing OpusHead header", ErrUnsupportedFormat)
	}
	channels := int(data[i+9])
	if channels == 0 {
		return 0, fmt.Errorf("OpusHead declares zero channels")
	}
	return channels, nil
}
