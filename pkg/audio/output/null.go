// ABOUTME: Silent real-time output backend
// ABOUTME: Drives the renderer from a ticker at device pace without producing sound
package output

import (
	"log"
	"sync"
	"time"
)

// Null renders audio at real-time pace and discards it
type Null struct {
	mu       sync.Mutex
	renderer Renderer
	buf      []float32
	period   time.Duration
	bufferMs int
	stop     chan chan struct{}
}

// NewNull creates a new Null output
func NewNull(bufferMs int) Output {
	if bufferMs <= 0 {
		bufferMs = 10
	}
	return &Null{bufferMs: bufferMs}
}

// Open prepares a period-sized buffer for the renderer
func (n *Null) Open(sampleRate, channels int, r Renderer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	frames := framesFor(sampleRate, n.bufferMs)
	n.renderer = r
	n.buf = make([]float32, frames*channels)
	n.period = time.Duration(frames) * time.Second / time.Duration(sampleRate)

	log.Printf("Audio output initialized: %dHz, %d channels (null, %v period)", sampleRate, channels, n.period)
	return nil
}

// Start launches the render loop
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.renderer == nil {
		return ErrNotOpen
	}
	if n.stop != nil {
		return nil
	}
	n.stop = make(chan chan struct{})
	go n.loop(n.renderer, n.buf, n.period, n.stop)
	return nil
}

func (n *Null) loop(r Renderer, buf []float32, period time.Duration, stop chan chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// Keeps pulling after the last chunk like a hardware device. The
	// renderer may have been moved on before its owner stopped us.
	for {
		select {
		case ack := <-stop:
			close(ack)
			return
		case <-ticker.C:
			r.Render(buf)
		}
	}
}

// Stop ends the render loop and waits for it to exit
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop == nil {
		return nil
	}
	ack := make(chan struct{})
	n.stop <- ack
	<-ack
	n.stop = nil
	return nil
}

// Close releases output resources
func (n *Null) Close() error {
	return n.Stop()
}
