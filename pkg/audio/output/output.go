// ABOUTME: Audio output interface definition
// ABOUTME: Common pull-model interface for real-time playback backends
package output

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotOpen is returned when starting a backend that has not been opened
var ErrNotOpen = errors.New("output not opened")

// Renderer produces audio for a backend's real-time callback.
type Renderer interface {
	// Render fills out with interleaved float32 frames. It is called from the
	// device thread and must not block, allocate or fail. It reports true
	// once the source is exhausted; the buffer is still fully written.
	Render(out []float32) (last bool)
}

// Output represents an audio output device driven by a Renderer
type Output interface {
	// Open prepares the device for the given format. It may be called again
	// with a new format while stopped.
	Open(sampleRate, channels int, r Renderer) error

	// Start begins invoking the renderer
	Start() error

	// Stop halts the device. It returns only once no Render call is in flight.
	Stop() error

	// Close releases output resources
	Close() error
}

// Backends lists the names accepted by New
func Backends() []string {
	return []string{"malgo", "oto", "beep", "portaudio", "null"}
}

// New creates the named backend with the given device buffer length
func New(name string, bufferMs int) (Output, error) {
	switch strings.ToLower(name) {
	case "malgo", "":
		return NewMalgo(bufferMs), nil
	case "oto":
		return NewOto(bufferMs), nil
	case "beep":
		return NewBeep(bufferMs), nil
	case "portaudio":
		return NewPortAudio(bufferMs), nil
	case "null":
		return NewNull(bufferMs), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
}

// framesFor returns the number of frames in ms milliseconds at sampleRate
func framesFor(sampleRate, ms int) int {
	n := sampleRate * ms / 1000
	if n < 64 {
		n = 64
	}
	return n
}

// renderChunked renders need samples through scratch, which must hold a
// whole number of frames, calling emit for each rendered chunk. It keeps
// going after the renderer reports its last chunk so the device buffer is
// always filled.
func renderChunked(r Renderer, scratch []float32, need int, emit func(off int, chunk []float32)) bool {
	last := false
	for off := 0; off < need; {
		n := min(need-off, len(scratch))
		chunk := scratch[:n]
		if r.Render(chunk) {
			last = true
		}
		emit(off, chunk)
		off += n
	}
	return last
}
