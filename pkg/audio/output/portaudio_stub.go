//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(bufferMs int) Output {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	return errPortAudioDisabled
}

// Start begins playback
func (p *PortAudio) Start() error {
	return errPortAudioDisabled
}

// Stop halts playback
func (p *PortAudio) Stop() error {
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
