// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 data callback
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	renderer   Renderer
	sampleRate int
	channels   int
	bufferMs   int
	running    bool

	// Preallocated so the data callback never allocates
	scratch []float32
}

// NewMalgo creates a new Malgo output
func NewMalgo(bufferMs int) Output {
	return &Malgo{bufferMs: bufferMs}
}

// Open initializes the playback device for the given format
func (m *Malgo) Open(sampleRate, channels int, r Renderer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cannot reopen a running device")
	}

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		m.renderer = r
		return nil
	}

	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.renderer = r
	m.sampleRate = sampleRate
	m.channels = channels
	m.scratch = make([]float32, framesFor(sampleRate, m.bufferMs)*channels)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(m.bufferMs)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample, frameCount)
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	m.device = device

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/%s, %dms period)",
		sampleRate, channels, formatName(malgo.FormatF32), m.bufferMs)

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	need := int(frameCount) * m.channels
	renderChunked(m.renderer, m.scratch, need, func(off int, chunk []float32) {
		for i, s := range chunk {
			binary.LittleEndian.PutUint32(pOutput[(off+i)*4:], math.Float32bits(s))
		}
	})
}

// Start begins playback
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	if m.running {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.running = true
	return nil
}

// Stop halts the device; miniaudio waits for the data callback to return
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || !m.running {
		return nil
	}
	m.running = false
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if m.running {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.running = false
	}
	m.device.Uninit()
	m.device = nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
