// ABOUTME: Playback engine with transport controls and a lock-free render step
// ABOUTME: Coordinates the control goroutines with the output device thread
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/soittokone/soittokone-go/pkg/audio"
	"github.com/soittokone/soittokone-go/pkg/audio/decode"
	"github.com/soittokone/soittokone-go/pkg/audio/output"
)

// Config holds engine configuration
type Config struct {
	// Source decodes files passed to Load
	Source decode.Source

	// Output is the device the engine renders into
	Output output.Output

	// OnEvent is called for every engine event, in order, from a single
	// goroutine owned by the engine
	OnEvent func(Event)
}

// track is an immutable loaded recording
type track struct {
	path   string
	pcm    *audio.PCM
	frames int64
	rate   int64
}

// Engine plays a single decoded recording
type Engine struct {
	config Config

	// mu serializes control operations; Render never takes it
	mu    sync.Mutex
	track atomic.Pointer[track]
	state atomic.Int32

	// Shared with the render step
	cursor      atomic.Int64
	stopAt      atomic.Int64 // frame, -1 when unset
	finished    atomic.Bool  // set by Render once it has produced its last chunk
	lastSecond  atomic.Int64
	timePending atomic.Bool

	halt chan struct{}
	wake chan struct{}

	queueMu sync.Mutex
	queue   []Event

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates an engine and starts its event and halt goroutines
func New(config Config) (*Engine, error) {
	if config.Source == nil {
		return nil, errors.New("playback: Source is required")
	}
	if config.Output == nil {
		return nil, errors.New("playback: Output is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config: config,
		halt:   make(chan struct{}, 1),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	e.stopAt.Store(-1)

	e.wg.Add(2)
	go e.dispatchLoop()
	go e.haltLoop()

	return e, nil
}

// signal performs a non-blocking send on a capacity-1 channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Render fills out with the next interleaved stereo frames. It is called
// from the output's device thread.
func (e *Engine) Render(out []float32) bool {
	t := e.track.Load()
	if t == nil || e.finished.Load() {
		clear(out)
		return true
	}

	want := int64(len(out) / audio.Channels)
	cur := e.cursor.Load()

	// A boundary at the cursor counts as reached
	end := t.frames
	if stop := e.stopAt.Load(); stop >= cur && stop < end {
		end = stop
	}
	n := min(max(end-cur, 0), want)

	copy(out, t.pcm.Samples[cur*audio.Channels:(cur+n)*audio.Channels])
	clear(out[n*audio.Channels:])

	if n > 0 {
		// A seek that landed during this callback wins
		if !e.cursor.CompareAndSwap(cur, cur+n) {
			return false
		}
		sec := (cur + n) / t.rate
		if e.lastSecond.Swap(sec) != sec {
			e.timePending.Store(true)
			signal(e.wake)
		}
	}

	if cur+n >= end {
		e.finished.Store(true)
		signal(e.halt)
		return true
	}
	return false
}

// haltLoop stops the output after Render reports the end of audio or the
// stop boundary. A boundary that was reached is cleared so that the next
// Play carries on from it.
func (e *Engine) haltLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.halt:
		}

		e.mu.Lock()
		if e.State() == StatePlaying && e.finished.Load() {
			if e.stopAt.Load() == e.cursor.Load() {
				e.stopAt.Store(-1)
			}
			e.stopOutput()
			e.state.Store(int32(StateStopped))
			e.emit(Event{Kind: EventPaused})
		}
		e.mu.Unlock()
	}
}

// dispatchLoop delivers queued events and the latest time change
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	lastDelivered := int64(-1)
	for {
		select {
		case <-e.ctx.Done():
			e.flush(&lastDelivered)
			return
		case <-e.wake:
			e.flush(&lastDelivered)
		}
	}
}

func (e *Engine) flush(lastDelivered *int64) {
	e.queueMu.Lock()
	events := e.queue
	e.queue = nil
	e.queueMu.Unlock()

	for _, ev := range events {
		if ev.Kind == EventTimeChanged {
			*lastDelivered = ev.Seconds
		}
		e.deliver(ev)
	}

	// Report where playback is now rather than where the render step was
	if e.timePending.Swap(false) {
		if sec := e.CurrentSeconds(); sec != *lastDelivered {
			*lastDelivered = sec
			e.deliver(Event{Kind: EventTimeChanged, Seconds: sec})
		}
	}
}

func (e *Engine) deliver(ev Event) {
	if e.config.OnEvent != nil {
		e.config.OnEvent(ev)
	}
}

// emit queues an event from the control context
func (e *Engine) emit(ev Event) {
	e.queueMu.Lock()
	e.queue = append(e.queue, ev)
	e.queueMu.Unlock()
	signal(e.wake)
}

// emitTime reports a control-context position change (must hold e.mu)
func (e *Engine) emitTime(frame, rate int64) {
	sec := frame / rate
	e.lastSecond.Store(sec)
	e.timePending.Store(false)
	e.emit(Event{Kind: EventTimeChanged, Seconds: sec})
}

// stopOutput halts the device synchronously (must hold e.mu)
func (e *Engine) stopOutput() {
	if err := e.config.Output.Stop(); err != nil {
		log.Printf("Warning: output stop error: %v", err)
	}
}

// Load decodes path and makes it the current recording. On a decode error
// the engine is left untouched.
func (e *Engine) Load(path string) error {
	pcm, err := e.config.Source.Decode(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if pcm.SampleRate <= 0 {
		return fmt.Errorf("failed to load %s: invalid sample rate %d", path, pcm.SampleRate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StatePlaying {
		e.stopOutput()
		e.state.Store(int32(StateStopped))
		e.emit(Event{Kind: EventPaused})
	}

	if err := e.config.Output.Open(pcm.SampleRate, audio.Channels, e); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	t := &track{
		path:   path,
		pcm:    pcm,
		frames: pcm.Frames(),
		rate:   int64(pcm.SampleRate),
	}
	e.track.Store(t)
	e.cursor.Store(0)
	e.stopAt.Store(-1)
	e.finished.Store(false)
	e.state.Store(int32(StateStopped))

	log.Printf("Loaded %s: %d frames at %dHz", path, t.frames, t.rate)

	e.emit(Event{
		Kind:     EventFileLoaded,
		Path:     path,
		Seconds:  t.frames / t.rate,
	})
	e.emitTime(0, t.rate)
	return nil
}

// Play starts playback from the cursor. A cursor left at the end of the
// recording rewinds to the start.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playLocked()
}

func (e *Engine) playLocked() error {
	t := e.track.Load()
	if t == nil || e.State() == StatePlaying {
		return nil
	}

	if e.cursor.Load() >= t.frames {
		e.cursor.Store(0)
		e.emitTime(0, t.rate)
	}
	e.finished.Store(false)

	if err := e.config.Output.Start(); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}
	e.state.Store(int32(StatePlaying))
	e.emit(Event{Kind: EventPlayed})
	return nil
}

// Pause stops playback, keeping the cursor where it is
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StatePlaying {
		return
	}
	e.stopOutput()
	e.state.Store(int32(StateStopped))
	e.emit(Event{Kind: EventPaused})
}

// SeekToSample moves the cursor to frame n, clamped to [0, TotalFrames]
func (e *Engine) SeekToSample(n int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seekLocked(n)
}

func (e *Engine) seekLocked(n int64) {
	t := e.track.Load()
	if t == nil {
		return
	}
	n = min(max(n, 0), t.frames)
	e.cursor.Store(n)
	if n < t.frames {
		// Let a playing engine carry on from the new position
		e.finished.Store(false)
	}
	e.emitTime(n, t.rate)
}

// SeekToSeconds moves the cursor to the frame nearest s seconds
func (e *Engine) SeekToSeconds(s float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t := e.track.Load(); t != nil {
		e.seekLocked(int64(math.Round(s * float64(t.rate))))
	}
}

// PlayFromMs seeks to ms and starts playback
func (e *Engine) PlayFromMs(ms int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track.Load()
	if t == nil {
		return nil
	}
	e.seekLocked(msToFrame(ms, t.rate))
	return e.playLocked()
}

// SetStopAtMs makes playback halt when it reaches ms
func (e *Engine) SetStopAtMs(ms int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track.Load()
	if t == nil {
		return
	}
	e.stopAt.Store(min(max(msToFrame(ms, t.rate), 0), t.frames))
}

// ClearStop removes the stop boundary
func (e *Engine) ClearStop() {
	e.stopAt.Store(-1)
}

// StopAtMs returns the stop boundary, if one is set
func (e *Engine) StopAtMs() (int64, bool) {
	t := e.track.Load()
	s := e.stopAt.Load()
	if t == nil || s < 0 {
		return 0, false
	}
	return s * 1000 / t.rate, true
}

// msToFrame converts milliseconds to the nearest frame
func msToFrame(ms, rate int64) int64 {
	return int64(math.Round(float64(rate) * float64(ms) / 1000))
}

// CurrentSeconds returns the whole seconds played so far
func (e *Engine) CurrentSeconds() int64 {
	t := e.track.Load()
	if t == nil {
		return 0
	}
	return e.cursor.Load() / t.rate
}

// CurrentMs returns the playhead position in milliseconds, rounded down
func (e *Engine) CurrentMs() int64 {
	t := e.track.Load()
	if t == nil {
		return 0
	}
	return e.cursor.Load() * 1000 / t.rate
}

// FrameForMs returns the frame SetStopAtMs and PlayFromMs use for ms
func (e *Engine) FrameForMs(ms int64) int64 {
	t := e.track.Load()
	if t == nil {
		return 0
	}
	return msToFrame(ms, t.rate)
}

// Position returns the cursor in frames
func (e *Engine) Position() int64 {
	return e.cursor.Load()
}

// TotalFrames returns the length of the loaded recording in frames
func (e *Engine) TotalFrames() int64 {
	if t := e.track.Load(); t != nil {
		return t.frames
	}
	return 0
}

// SampleRate returns the rate of the loaded recording
func (e *Engine) SampleRate() int {
	if t := e.track.Load(); t != nil {
		return int(t.rate)
	}
	return 0
}

// Duration returns the length of the loaded recording in seconds
func (e *Engine) Duration() float64 {
	if t := e.track.Load(); t != nil {
		return float64(t.frames) / float64(t.rate)
	}
	return 0
}

// Path returns the path of the loaded recording
func (e *Engine) Path() string {
	if t := e.track.Load(); t != nil {
		return t.path
	}
	return ""
}

// State returns the transport state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Close stops playback, delivers outstanding events and releases the output
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.State() == StatePlaying {
			e.stopOutput()
			e.state.Store(int32(StateStopped))
			e.emit(Event{Kind: EventPaused})
		}
		e.mu.Unlock()

		e.cancel()
		e.wg.Wait()

		if err := e.config.Output.Close(); err != nil {
			e.closeErr = fmt.Errorf("failed to close output: %w", err)
		}
	})
	return e.closeErr
}
