// ABOUTME: Tests for the playback engine
// ABOUTME: Drives Render through a scripted output to check transport, boundaries and events
package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soittokone/soittokone-go/pkg/audio"
	"github.com/soittokone/soittokone-go/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutput is a device whose callback runs only when the test pulls
type fakeOutput struct {
	mu       sync.Mutex
	renderer output.Renderer
	rate     int
	channels int
	running  bool
	opens    int
	starts   int
	stops    int
	closed   bool
	startErr error
}

func (f *fakeOutput) Open(sampleRate, channels int, r output.Renderer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderer, f.rate, f.channels = r, sampleRate, channels
	f.opens++
	return nil
}

func (f *fakeOutput) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	f.starts++
	return nil
}

func (f *fakeOutput) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		f.stops++
	}
	f.running = false
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// pull runs one device callback for frames frames. It returns nil when the
// device is not running.
func (f *fakeOutput) pull(frames int) ([]float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil, false
	}
	buf := make([]float32, frames*f.channels)
	last := f.renderer.Render(buf)
	return buf, last
}

func (f *fakeOutput) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// fakeSource serves prebuilt recordings by path
type fakeSource map[string]*audio.PCM

var errNoSuchFile = errors.New("no such file")

func (s fakeSource) Decode(path string) (*audio.PCM, error) {
	pcm, ok := s[path]
	if !ok {
		return nil, errNoSuchFile
	}
	return pcm, nil
}

// ramp builds a recording whose left channel holds the frame index
func ramp(frames, rate int) *audio.PCM {
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		samples[2*i] = float32(i)
		samples[2*i+1] = -float32(i)
	}
	return &audio.PCM{Samples: samples, SampleRate: rate}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) lastTime() (int64, bool) {
	events := r.snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventTimeChanged {
			return events[i].Seconds, true
		}
	}
	return 0, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

const waitFor = 2 * time.Second
const tick = 2 * time.Millisecond

func newTestEngine(t *testing.T, src fakeSource) (*Engine, *fakeOutput, *recorder) {
	t.Helper()
	out := &fakeOutput{}
	rec := &recorder{}
	e, err := New(Config{Source: src, Output: out, OnEvent: rec.record})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, out, rec
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Output: &fakeOutput{}})
	assert.Error(t, err)
	_, err = New(Config{Source: fakeSource{}})
	assert.Error(t, err)
}

func TestTransportBeforeLoadIsNoop(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{})

	assert.NoError(t, e.Play())
	e.Pause()
	e.SeekToSample(100)
	e.SeekToSeconds(3)
	e.SetStopAtMs(500)
	assert.NoError(t, e.PlayFromMs(10))

	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, int64(0), e.CurrentMs())
	assert.Equal(t, int64(0), e.CurrentSeconds())
	_, ok := e.StopAtMs()
	assert.False(t, ok)
	assert.Equal(t, 0, out.starts)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestLoadEmitsFileLoadedAndTimeZero(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(2205, 44100)})

	require.NoError(t, e.Load("a.wav"))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 44100, out.rate)
	assert.Equal(t, 2, out.channels)
	assert.Equal(t, int64(2205), e.TotalFrames())
	assert.Equal(t, "a.wav", e.Path())

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 2 }, waitFor, tick)
	events := rec.snapshot()
	assert.Equal(t, EventFileLoaded, events[0].Kind)
	assert.Equal(t, "a.wav", events[0].Path)
	assert.Equal(t, int64(0), events[0].Seconds, "length is reported in whole seconds")
	assert.Equal(t, Event{Kind: EventTimeChanged, Seconds: 0}, events[1])
}

func TestLoadFailureLeavesEngineUnchanged(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})

	require.NoError(t, e.Load("a.wav"))
	e.SeekToSample(42)

	err := e.Load("missing.mp3")
	assert.ErrorIs(t, err, errNoSuchFile)
	assert.Equal(t, "a.wav", e.Path())
	assert.Equal(t, int64(42), e.Position())
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 1, out.opens)
}

func TestPlayPauseEvents(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))

	require.NoError(t, e.Play())
	assert.Equal(t, StatePlaying, e.State())
	assert.True(t, out.isRunning())

	// Playing twice does nothing
	require.NoError(t, e.Play())
	assert.Equal(t, 1, out.starts)

	e.Pause()
	assert.Equal(t, StateStopped, e.State())
	assert.False(t, out.isRunning())

	require.Eventually(t, func() bool { return rec.count(EventPaused) == 1 }, waitFor, tick)
	assert.Equal(t, 1, rec.count(EventPlayed))
}

func TestPlayReportsStartFailure(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))

	out.startErr = errors.New("device busy")
	assert.Error(t, e.Play())
	assert.Equal(t, StateStopped, e.State())
}

func TestRenderCopiesFramesAndAdvances(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))
	e.SeekToSample(5)
	require.NoError(t, e.Play())

	buf, last := out.pull(3)
	assert.False(t, last)
	assert.Equal(t, []float32{5, -5, 6, -6, 7, -7}, buf)
	assert.Equal(t, int64(8), e.Position())
}

func TestRenderDoesNotAllocate(t *testing.T) {
	e, _, _ := newTestEngine(t, fakeSource{"a.wav": ramp(48000*60, 48000)})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())

	buf := make([]float32, 512*2)
	allocs := testing.AllocsPerRun(200, func() {
		e.Render(buf)
	})
	assert.Zero(t, allocs)
}

func TestEndOfBufferHaltsAndRewindsLazily(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(10, 10)})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())

	buf, last := out.pull(8)
	require.False(t, last)
	buf, last = out.pull(8)
	assert.True(t, last)
	assert.Equal(t, []float32{8, -8, 9, -9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, buf)

	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	assert.False(t, out.isRunning())
	assert.Equal(t, int64(10), e.Position(), "cursor stays at the end until play")
	require.Eventually(t, func() bool { return rec.count(EventPaused) == 1 }, waitFor, tick)

	rec.reset()
	require.NoError(t, e.Play())
	assert.Equal(t, int64(0), e.Position())
	require.Eventually(t, func() bool { return rec.count(EventPlayed) == 1 }, waitFor, tick)
	sec, ok := rec.lastTime()
	require.True(t, ok)
	assert.Equal(t, int64(0), sec)
}

func TestStopBoundaryHaltsAndResumesSeamlessly(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))
	e.SetStopAtMs(500)
	ms, ok := e.StopAtMs()
	require.True(t, ok)
	assert.Equal(t, int64(500), ms)

	require.NoError(t, e.Play())
	_, last := out.pull(300)
	require.False(t, last)
	buf, last := out.pull(300)
	assert.True(t, last)
	assert.Equal(t, float32(499), buf[2*199])
	assert.Equal(t, float32(0), buf[2*200])

	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return rec.count(EventPaused) == 1 }, waitFor, tick)
	assert.Equal(t, int64(500), e.Position())

	// Resuming continues past the boundary without rewinding
	require.NoError(t, e.Play())
	buf, last = out.pull(100)
	assert.False(t, last)
	assert.Equal(t, float32(500), buf[0])
	assert.Equal(t, int64(600), e.Position())
}

func TestStopBoundaryOnCallbackEdge(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))
	e.SetStopAtMs(500)
	require.NoError(t, e.Play())

	_, last := out.pull(250)
	require.False(t, last)
	buf, last := out.pull(250)
	assert.True(t, last, "a chunk ending on the boundary is the last one")
	assert.Equal(t, float32(499), buf[2*249])

	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return rec.count(EventPaused) == 1 }, waitFor, tick)
	assert.Equal(t, int64(500), e.Position())
	assert.False(t, out.isRunning())
	_, ok := e.StopAtMs()
	assert.False(t, ok, "a reached boundary is cleared")

	require.NoError(t, e.Play())
	buf, last = out.pull(100)
	assert.False(t, last)
	assert.Equal(t, float32(500), buf[0])
}

func TestStopBoundaryAtCursorHaltsImmediately(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())
	out.pull(100)

	e.SetStopAtMs(100)
	buf, last := out.pull(50)
	assert.True(t, last)
	assert.Equal(t, make([]float32, 100), buf)
	require.Eventually(t, func() bool { return e.State() == StateStopped }, waitFor, tick)
	assert.Equal(t, int64(100), e.Position())
}

func TestSeekBeforeHaltKeepsPlaying(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))
	e.SeekToSample(95)
	require.NoError(t, e.Play())

	// Hold the control lock so the seek lands before the halt is handled
	e.mu.Lock()
	_, last := out.pull(10)
	require.True(t, last)
	e.seekLocked(20)
	e.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePlaying, e.State())
	assert.True(t, out.isRunning())

	buf, last := out.pull(5)
	assert.False(t, last)
	assert.Equal(t, float32(20), buf[0])
	assert.Equal(t, int64(25), e.Position())
}

func TestStopBoundaryBehindCursorIsIgnored(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))
	e.SeekToSample(800)
	e.SetStopAtMs(500)
	require.NoError(t, e.Play())

	_, last := out.pull(100)
	assert.False(t, last)
	assert.Equal(t, int64(900), e.Position())
}

func TestClearStop(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))
	e.SetStopAtMs(100)
	e.ClearStop()
	_, ok := e.StopAtMs()
	assert.False(t, ok)

	require.NoError(t, e.Play())
	_, last := out.pull(200)
	assert.False(t, last)
}

func TestSetStopAtMsClamps(t *testing.T) {
	e, _, _ := newTestEngine(t, fakeSource{"a.wav": ramp(2000, 1000)})
	require.NoError(t, e.Load("a.wav"))

	e.SetStopAtMs(99999)
	ms, ok := e.StopAtMs()
	require.True(t, ok)
	assert.Equal(t, int64(2000), ms)

	e.SetStopAtMs(-10)
	ms, _ = e.StopAtMs()
	assert.Equal(t, int64(0), ms)
}

func TestSeekClamps(t *testing.T) {
	e, _, rec := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))

	e.SeekToSample(-5)
	assert.Equal(t, int64(0), e.Position())

	e.SeekToSample(1000)
	assert.Equal(t, int64(100), e.Position(), "seek past the end lands on the end")
	require.Eventually(t, func() bool {
		sec, ok := rec.lastTime()
		return ok && sec == 10
	}, waitFor, tick)

	// The rewind happens on play, not on seek
	require.NoError(t, e.Play())
	assert.Equal(t, int64(0), e.Position())
}

func TestSeekWhilePlayingKeepsPlaying(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())

	e.SeekToSeconds(5.04)
	assert.Equal(t, int64(50), e.Position())
	assert.Equal(t, StatePlaying, e.State())

	buf, _ := out.pull(1)
	assert.Equal(t, float32(50), buf[0])
}

func TestPlayFromMs(t *testing.T) {
	e, out, _ := newTestEngine(t, fakeSource{"a.wav": ramp(5000, 1000)})
	require.NoError(t, e.Load("a.wav"))

	require.NoError(t, e.PlayFromMs(1234))
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, int64(1234), e.Position())

	buf, _ := out.pull(1)
	assert.Equal(t, float32(1234), buf[0])
}

func TestTimeMath(t *testing.T) {
	e, _, _ := newTestEngine(t, fakeSource{"a.wav": ramp(44100*3, 44100)})
	require.NoError(t, e.Load("a.wav"))

	e.SeekToSample(44100 + 22050)
	assert.Equal(t, int64(1), e.CurrentSeconds())
	assert.Equal(t, int64(1500), e.CurrentMs())

	// ms rounds down
	e.SeekToSample(1)
	assert.Equal(t, int64(0), e.CurrentMs())

	assert.Equal(t, int64(441), e.FrameForMs(10))
	assert.InDelta(t, 3.0, e.Duration(), 1e-9)
	assert.Equal(t, 44100, e.SampleRate())
}

func TestTimeChangedThrottledToWholeSeconds(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())
	require.Eventually(t, func() bool { return rec.count(EventPlayed) == 1 }, waitFor, tick)
	rec.reset()

	// 35 one-frame callbacks cross three second boundaries
	for i := 0; i < 35; i++ {
		out.pull(1)
	}

	require.Eventually(t, func() bool {
		sec, ok := rec.lastTime()
		return ok && sec == 3
	}, waitFor, tick)

	var seconds []int64
	for _, ev := range rec.snapshot() {
		if ev.Kind == EventTimeChanged {
			seconds = append(seconds, ev.Seconds)
		}
	}
	assert.LessOrEqual(t, len(seconds), 3)
	for i := 1; i < len(seconds); i++ {
		assert.Greater(t, seconds[i], seconds[i-1], "time events only move forward during playback")
	}
}

func TestLoadWhilePlayingStopsFirst(t *testing.T) {
	e, out, rec := newTestEngine(t, fakeSource{
		"a.wav": ramp(100, 10),
		"b.wav": ramp(200, 20),
	})
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())
	out.pull(10)

	require.NoError(t, e.Load("b.wav"))
	assert.Equal(t, StateStopped, e.State())
	assert.False(t, out.isRunning())
	assert.Equal(t, 20, out.rate)
	assert.Equal(t, int64(0), e.Position())
	assert.Equal(t, 1, out.stops)

	require.Eventually(t, func() bool { return rec.count(EventFileLoaded) == 2 }, waitFor, tick)
	assert.Equal(t, 1, rec.count(EventPaused))
}

func TestLoadClearsStopBoundary(t *testing.T) {
	e, _, _ := newTestEngine(t, fakeSource{"a.wav": ramp(100, 10)})
	require.NoError(t, e.Load("a.wav"))
	e.SetStopAtMs(5000)

	require.NoError(t, e.Load("a.wav"))
	_, ok := e.StopAtMs()
	assert.False(t, ok)
}

func TestEventCallbackMayCallEngine(t *testing.T) {
	src := fakeSource{"a.wav": ramp(100, 10)}
	out := &fakeOutput{}
	done := make(chan int64, 1)

	var e *Engine
	e, err := New(Config{Source: src, Output: out, OnEvent: func(ev Event) {
		if ev.Kind == EventFileLoaded {
			e.SetStopAtMs(3000)
			ms, _ := e.StopAtMs()
			done <- ms
		}
	}})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Load("a.wav"))
	select {
	case ms := <-done:
		assert.Equal(t, int64(3000), ms)
	case <-time.After(waitFor):
		t.Fatal("event callback did not run")
	}
}

func TestCloseStopsAndClosesOutput(t *testing.T) {
	out := &fakeOutput{}
	rec := &recorder{}
	e, err := New(Config{Source: fakeSource{"a.wav": ramp(100, 10)}, Output: out, OnEvent: rec.record})
	require.NoError(t, err)
	require.NoError(t, e.Load("a.wav"))
	require.NoError(t, e.Play())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, out.closed)
	assert.False(t, out.isRunning())
	assert.Equal(t, 1, rec.count(EventPaused), "pending events are delivered before Close returns")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "time-changed 4s", Event{Kind: EventTimeChanged, Seconds: 4}.String())
	assert.Equal(t, "file-loaded a.wav (3s)", Event{Kind: EventFileLoaded, Path: "a.wav", Seconds: 3}.String())
}
