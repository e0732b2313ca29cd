// ABOUTME: Beep speaker audio output implementation
// ABOUTME: Plays the renderer as a pausable beep streamer on the global speaker
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Beep output implementation using the beep speaker package
type Beep struct {
	mu         sync.Mutex
	ctrl       *beep.Ctrl
	stream     *rendererStreamer
	sampleRate beep.SampleRate
	bufferMs   int
}

// rendererStreamer adapts a stereo Renderer to beep.Streamer
type rendererStreamer struct {
	renderer Renderer
	scratch  []float32
}

// Stream never finishes; the speaker keeps pulling until paused
func (s *rendererStreamer) Stream(samples [][2]float64) (int, bool) {
	renderChunked(s.renderer, s.scratch, len(samples)*2, func(off int, chunk []float32) {
		for i := 0; i+1 < len(chunk); i += 2 {
			frame := (off + i) / 2
			samples[frame][0] = float64(chunk[i])
			samples[frame][1] = float64(chunk[i+1])
		}
	})
	return len(samples), true
}

func (s *rendererStreamer) Err() error { return nil }

// NewBeep creates a new Beep output
func NewBeep(bufferMs int) Output {
	return &Beep{bufferMs: bufferMs}
}

// Open initializes the speaker at the given rate and queues the renderer paused
func (b *Beep) Open(sampleRate, channels int, r Renderer) error {
	if channels != 2 {
		return fmt.Errorf("beep output requires 2 channels, got %d", channels)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sr := beep.SampleRate(sampleRate)
	if b.ctrl == nil || sr != b.sampleRate {
		speaker.Clear()
		if err := speaker.Init(sr, sr.N(time.Duration(b.bufferMs)*time.Millisecond)); err != nil {
			return fmt.Errorf("failed to initialize speaker: %w", err)
		}
		b.sampleRate = sr
		log.Printf("Audio output initialized: %dHz, %d channels (beep)", sampleRate, channels)
	} else {
		speaker.Clear()
	}

	b.stream = &rendererStreamer{
		renderer: r,
		scratch:  make([]float32, sr.N(time.Duration(b.bufferMs)*time.Millisecond)*2),
	}
	b.ctrl = &beep.Ctrl{Streamer: b.stream, Paused: true}
	speaker.Play(b.ctrl)
	return nil
}

// Start unpauses the streamer
func (b *Beep) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl == nil {
		return ErrNotOpen
	}
	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Stop pauses the streamer. The speaker streams under its lock, so holding
// it guarantees no Render call is running.
func (b *Beep) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl == nil {
		return nil
	}
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Close releases output resources
func (b *Beep) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl == nil {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	b.ctrl = nil
	b.stream = nil
	return nil
}
