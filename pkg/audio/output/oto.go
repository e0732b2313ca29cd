// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds oto's mixer from the renderer through a never-ending reader
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoOnce    sync.Once
	otoCtx     *oto.Context
	otoCtxErr  error
	otoCtxRate int
	otoCtxChan int
)

func sharedOtoContext(sampleRate, channels, bufferMs int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(bufferMs) * time.Millisecond,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoCtxErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan
		otoCtx, otoCtxRate, otoCtxChan = ctx, sampleRate, channels
	})
	if otoCtxErr != nil {
		return nil, otoCtxErr
	}
	if otoCtxRate != sampleRate || otoCtxChan != channels {
		return nil, fmt.Errorf("oto cannot switch from %dHz/%dch to %dHz/%dch within one process",
			otoCtxRate, otoCtxChan, sampleRate, channels)
	}
	return otoCtx, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu       sync.Mutex
	player   *oto.Player
	reader   *renderReader
	bufferMs int
	running  bool
}

// renderReader adapts a Renderer to the io.Reader oto pulls from. While
// paused it serves silence without calling the renderer.
type renderReader struct {
	mu       sync.Mutex
	renderer Renderer
	channels int
	scratch  []float32
	paused   bool
}

// Read never returns io.EOF so the player stays attached
func (r *renderReader) Read(p []byte) (int, error) {
	frameBytes := 4 * r.channels
	need := (len(p) / frameBytes) * r.channels

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		clear(p[:need*4])
		return need * 4, nil
	}
	renderChunked(r.renderer, r.scratch, need, func(off int, chunk []float32) {
		for i, s := range chunk {
			binary.LittleEndian.PutUint32(p[(off+i)*4:], math.Float32bits(s))
		}
	})
	return need * 4, nil
}

// setPaused gates the renderer. It returns once no Read is in flight.
func (r *renderReader) setPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
}

// Seek lets oto discard its internal buffer; position is owned by the renderer
func (r *renderReader) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

// NewOto creates a new Oto output
func NewOto(bufferMs int) Output {
	return &Oto{bufferMs: bufferMs}
}

// Open initializes the shared oto context and a player for the renderer
func (o *Oto) Open(sampleRate, channels int, r Renderer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("cannot reopen a running player")
	}

	ctx, err := sharedOtoContext(sampleRate, channels, o.bufferMs)
	if err != nil {
		return err
	}

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
	}

	o.reader = &renderReader{
		renderer: r,
		channels: channels,
		scratch:  make([]float32, framesFor(sampleRate, o.bufferMs)*channels),
		paused:   true,
	}
	o.player = ctx.NewPlayer(o.reader)

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)
	return nil
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	o.reader.setPaused(false)
	o.player.Play()
	o.running = true
	return nil
}

// Stop pauses the player and drops audio oto has already buffered. Pausing
// the player alone does not wait for oto's reader goroutine, so the reader
// is gated as well.
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil || !o.running {
		return nil
	}
	o.running = false
	o.player.Pause()
	o.reader.setPaused(true)
	if _, err := o.player.Seek(0, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to reset oto buffer: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
		o.reader.setPaused(true)
		if err := o.player.Close(); err != nil {
			return fmt.Errorf("failed to close oto player: %w", err)
		}
		o.player = nil
	}
	o.running = false
	return nil
}
