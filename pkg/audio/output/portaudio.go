//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio callback stream
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	renderer    Renderer
	sampleRate  int
	channels    int
	bufferMs    int
	running     bool
	initialized bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(bufferMs int) Output {
	return &PortAudio{bufferMs: bufferMs}
}

// Open initializes PortAudio and opens the default output stream
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("cannot reopen a running stream")
	}

	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		p.initialized = true
	}

	p.renderer = r
	if p.stream != nil && p.sampleRate == sampleRate && p.channels == channels {
		return nil
	}

	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			log.Printf("Warning: portaudio stream close error: %v", err)
		}
		p.stream = nil
	}

	frames := framesFor(sampleRate, p.bufferMs)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), frames, func(out []float32) {
		p.renderer.Render(out)
	})
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	p.sampleRate = sampleRate
	p.channels = channels

	log.Printf("Audio output initialized: %dHz, %d channels (portaudio)", sampleRate, channels)
	return nil
}

// Start begins playback
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if p.running {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.running = true
	return nil
}

// Stop halts the stream once pending callbacks have completed
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.running {
		return nil
	}
	p.running = false
	return p.stream.Stop()
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		if p.running {
			if err := p.stream.Stop(); err != nil {
				return err
			}
			p.running = false
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}
