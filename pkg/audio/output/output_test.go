// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backend construction, chunked rendering and the null device loop
package output

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRenderer fills every sample with a running counter
type countingRenderer struct {
	calls   atomic.Int64
	next    float32
	lastAt  int64 // report last on this call number, 0 = never
	inCall  atomic.Bool
	overlap atomic.Bool
}

func (r *countingRenderer) Render(out []float32) bool {
	if r.inCall.Swap(true) {
		r.overlap.Store(true)
	}
	defer r.inCall.Store(false)

	n := r.calls.Add(1)
	for i := range out {
		out[i] = r.next
		r.next++
	}
	return r.lastAt != 0 && n >= r.lastAt
}

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*Beep)(nil)
	var _ Output = (*Null)(nil)
}

func TestNew(t *testing.T) {
	for _, name := range Backends() {
		out, err := New(name, 20)
		require.NoError(t, err, name)
		assert.NotNil(t, out, name)
	}

	out, err := New("", 20)
	require.NoError(t, err)
	assert.IsType(t, &Malgo{}, out)

	_, err = New("jack", 20)
	assert.Error(t, err)
}

func TestFramesFor(t *testing.T) {
	assert.Equal(t, 2205, framesFor(44100, 50))
	assert.Equal(t, 64, framesFor(8000, 1), "tiny periods are rounded up")
}

func TestRenderChunked(t *testing.T) {
	r := &countingRenderer{}
	scratch := make([]float32, 4)
	dst := make([]float32, 10)

	last := renderChunked(r, scratch, len(dst), func(off int, chunk []float32) {
		copy(dst[off:], chunk)
	})

	assert.False(t, last)
	assert.Equal(t, int64(3), r.calls.Load())
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, dst)
}

func TestRenderChunkedKeepsFillingAfterLast(t *testing.T) {
	r := &countingRenderer{lastAt: 1}
	scratch := make([]float32, 2)

	calls := 0
	last := renderChunked(r, scratch, 6, func(off int, chunk []float32) { calls++ })

	assert.True(t, last)
	assert.Equal(t, 3, calls)
}

func TestRenderReaderEncodesFloat32LE(t *testing.T) {
	r := &renderReader{renderer: &countingRenderer{}, channels: 2, scratch: make([]float32, 4)}

	// 2 whole frames plus 3 stray bytes
	p := make([]byte, 2*8+3)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	for i := 0; i < 4; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		assert.Equal(t, float32(i), got)
	}
}

// blockingRenderer parks inside Render until released
type blockingRenderer struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRenderer) Render(out []float32) bool {
	close(r.entered)
	<-r.release
	return false
}

func TestRenderReaderPausedServesSilence(t *testing.T) {
	cr := &countingRenderer{}
	r := &renderReader{renderer: cr, channels: 2, scratch: make([]float32, 4), paused: true}

	p := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, make([]byte, 8), p)
	assert.Zero(t, cr.calls.Load())

	r.setPaused(false)
	_, err = r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cr.calls.Load())
}

func TestRenderReaderPauseWaitsForRead(t *testing.T) {
	br := &blockingRenderer{entered: make(chan struct{}), release: make(chan struct{})}
	r := &renderReader{renderer: br, channels: 2, scratch: make([]float32, 4)}

	go func() { _, _ = r.Read(make([]byte, 16)) }()
	<-br.entered

	paused := make(chan struct{})
	go func() {
		r.setPaused(true)
		close(paused)
	}()

	select {
	case <-paused:
		t.Fatal("pause returned while a render was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(br.release)
	select {
	case <-paused:
	case <-time.After(2 * time.Second):
		t.Fatal("pause did not return after the render finished")
	}
}

func TestRendererStreamer(t *testing.T) {
	s := &rendererStreamer{renderer: &countingRenderer{}, scratch: make([]float32, 4)}
	samples := make([][2]float64, 3)

	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][2]float64{{0, 1}, {2, 3}, {4, 5}}, samples)
	assert.NoError(t, s.Err())
}

func TestNullStartRequiresOpen(t *testing.T) {
	n := NewNull(10)
	assert.ErrorIs(t, n.Start(), ErrNotOpen)
	assert.NoError(t, n.Stop())
}

func TestNullDrivesRenderer(t *testing.T) {
	r := &countingRenderer{}
	n := NewNull(5)
	require.NoError(t, n.Open(8000, 2, r))
	require.NoError(t, n.Start())

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, n.Stop())
	after := r.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, r.calls.Load(), "no render calls after Stop returns")
	assert.False(t, r.overlap.Load())

	require.NoError(t, n.Close())
}

func TestNullKeepsPullingAfterLast(t *testing.T) {
	r := &countingRenderer{lastAt: 2}
	n := NewNull(5)
	require.NoError(t, n.Open(8000, 2, r))
	require.NoError(t, n.Start())
	defer n.Close()

	// Only Stop ends the callbacks
	assert.Eventually(t, func() bool { return r.calls.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, n.Stop())
	after := r.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, r.calls.Load())
}

func TestPortAudioStubDisabled(t *testing.T) {
	p := NewPortAudio(20)
	if err := p.Open(44100, 2, &countingRenderer{}); err == nil {
		t.Skip("built with portaudio support")
	}
	assert.Error(t, p.Start())
}
