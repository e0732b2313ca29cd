// ABOUTME: Source interface and extension-dispatching file decoder
// ABOUTME: Opens audio files and hands them to the matching codec
package decode

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/soittokone/soittokone-go/pkg/audio"
	"github.com/soittokone/soittokone-go/pkg/audio/resample"
)

// ErrUnsupportedFormat is returned for files no decoder understands
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source decodes a whole audio file into memory
type Source interface {
	Decode(path string) (*audio.PCM, error)
}

// FileSource decodes files from the local filesystem, choosing a codec by
// file extension
type FileSource struct {
	// TargetRate converts decoded audio to this sample rate when set
	TargetRate int
}

// NewFileSource creates a new file decoder
func NewFileSource() *FileSource {
	return &FileSource{}
}

// Extensions lists the file extensions FileSource can decode
func Extensions() []string {
	return []string{".mp3", ".flac", ".wav", ".opus", ".ogg"}
}

// Decode reads and decodes the file at path
func (s *FileSource) Decode(path string) (*audio.PCM, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		pcm    *audio.PCM
		format audio.Format
	)
	switch ext {
	case ".mp3":
		pcm, format, err = DecodeMP3(f)
	case ".flac":
		pcm, format, err = DecodeFLAC(f)
	case ".wav":
		pcm, format, err = DecodeWAV(f)
	case ".opus", ".ogg":
		pcm, format, err = DecodeOpus(f)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions(), ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	log.Printf("Decoded %s: %s %dHz %dch %d-bit, %v",
		filepath.Base(path), format.Codec, format.SampleRate, format.Channels, format.BitDepth, pcm.Duration())

	if s.TargetRate > 0 && pcm.SampleRate != s.TargetRate {
		pcm = &audio.PCM{
			Samples:    resample.Convert(pcm.Samples, pcm.SampleRate, s.TargetRate, audio.Channels),
			SampleRate: s.TargetRate,
		}
		log.Printf("Resampled %s to %dHz", filepath.Base(path), s.TargetRate)
	}

	return pcm, nil
}

// appendStereo appends interleaved samples with the given channel count to
// dst as interleaved stereo
func appendStereo(dst, src []float32, channels int) []float32 {
	switch {
	case channels == 1:
		for _, s := range src {
			dst = append(dst, s, s)
		}
	case channels == 2:
		dst = append(dst, src...)
	case channels > 2:
		for i := 0; i+channels <= len(src); i += channels {
			dst = append(dst, src[i], src[i+1])
		}
	}
	return dst
}
