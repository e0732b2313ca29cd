// ABOUTME: Main application orchestration
// ABOUTME: Ties the playback engine, the open project and marker navigation together
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/soittokone/soittokone-go/internal/recent"
	"github.com/soittokone/soittokone-go/pkg/audio/decode"
	"github.com/soittokone/soittokone-go/pkg/audio/output"
	"github.com/soittokone/soittokone-go/pkg/marker"
	"github.com/soittokone/soittokone-go/pkg/playback"
	"github.com/soittokone/soittokone-go/pkg/project"
)

var (
	// ErrNoAudio is returned by operations that need a loaded recording
	ErrNoAudio = errors.New("no audio loaded")

	// ErrNoProjectPath is returned when saving a project that has never been saved
	ErrNoProjectPath = errors.New("project has no file name")
)

// Config holds application configuration
type Config struct {
	Source decode.Source
	Output output.Output

	// Recent is the optional project history
	Recent *recent.Store

	// StopAtMarkers halts playback whenever it reaches a marker
	StopAtMarkers bool

	// OnStatus is called with a fresh snapshot after every change. It runs on
	// the engine's event goroutine or the caller's goroutine.
	OnStatus func(Status)
}

// Status is a snapshot of the application for front-ends
type Status struct {
	State         playback.State
	AudioPath     string
	ProjectPath   string
	PositionMs    int64
	DurationMs    int64
	Markers       []uint32
	NextMarkerMs  int64 // -1 when no marker lies ahead
	StopAtMarkers bool
	Dirty         bool

	// Event is the engine event that produced this snapshot, if any
	Event playback.EventKind
}

// App coordinates playback with the open project
type App struct {
	config Config
	engine *playback.Engine

	mu            sync.Mutex
	project       *project.Project
	projectPath   string
	stopAtMarkers bool
	untilNext     bool // stop at the next marker once, regardless of stopAtMarkers
	dirty         bool
}

// New creates the application with an empty project
func New(config Config) (*App, error) {
	a := &App{
		config:        config,
		stopAtMarkers: config.StopAtMarkers,
	}

	eng, err := playback.New(playback.Config{
		Source:  config.Source,
		Output:  config.Output,
		OnEvent: a.handleEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = eng
	a.setProject(project.New(), "")

	return a, nil
}

// Engine exposes the playback engine
func (a *App) Engine() *playback.Engine {
	return a.engine
}

// setProject makes p current and subscribes to its markers
func (a *App) setProject(p *project.Project, path string) {
	p.Markers.OnAdded(func(timeMs uint32) {
		a.mu.Lock()
		current := a.project == p
		if current {
			a.dirty = true
		}
		a.mu.Unlock()

		if current {
			a.armStop()
			a.notify(0)
		}
	})

	a.mu.Lock()
	a.project = p
	a.projectPath = path
	a.dirty = false
	a.mu.Unlock()
}

// currentProject returns the open project
func (a *App) currentProject() *project.Project {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project
}

// handleEvent reacts to engine events on the engine's event goroutine
func (a *App) handleEvent(ev playback.Event) {
	switch ev.Kind {
	case playback.EventPaused:
		a.mu.Lock()
		a.untilNext = false
		a.mu.Unlock()
		log.Printf("Paused at %dms", a.engine.CurrentMs())
	case playback.EventFileLoaded:
		log.Printf("File loaded: %s (%ds)", ev.Path, ev.Seconds)
	}

	a.armStop()
	a.notify(ev.Kind)
}

// armStop points the engine's stop boundary at the next marker ahead of the
// playhead, or clears it when stopping at markers is off
func (a *App) armStop() {
	a.mu.Lock()
	enabled := a.stopAtMarkers || a.untilNext
	markers := a.project.Markers
	a.mu.Unlock()

	if !enabled {
		a.engine.ClearStop()
		return
	}

	ms, ok := a.nextMarkerAhead(markers)
	if !ok {
		a.engine.ClearStop()
		return
	}
	a.engine.SetStopAtMs(int64(ms))
}

// nextMarkerAhead returns the first marker whose frame lies after the cursor
func (a *App) nextMarkerAhead(markers *marker.Index) (uint32, bool) {
	pos := a.engine.Position()
	ms, ok := markers.NextAtOrAfter(a.engine.CurrentMs())
	for ok && a.engine.FrameForMs(int64(ms)) <= pos {
		ms, ok = markers.NextAtOrAfter(int64(ms) + 1)
	}
	return ms, ok
}

// notify publishes a status snapshot
func (a *App) notify(kind playback.EventKind) {
	if a.config.OnStatus == nil {
		return
	}
	st := a.Status()
	st.Event = kind
	a.config.OnStatus(st)
}

// Status returns a snapshot of the application
func (a *App) Status() Status {
	a.mu.Lock()
	p := a.project
	st := Status{
		AudioPath:     p.AudioPath,
		ProjectPath:   a.projectPath,
		StopAtMarkers: a.stopAtMarkers,
		Dirty:         a.dirty,
	}
	a.mu.Unlock()

	st.State = a.engine.State()
	st.PositionMs = a.engine.CurrentMs()
	st.DurationMs = int64(math.Round(a.engine.Duration() * 1000))
	st.Markers = p.Markers.Markers()
	st.NextMarkerMs = -1
	if a.engine.State() != playback.StateIdle {
		if ms, ok := a.nextMarkerAhead(p.Markers); ok {
			st.NextMarkerMs = int64(ms)
		}
	}
	return st
}

// OpenAudio loads an audio file into a fresh project
func (a *App) OpenAudio(path string) error {
	if err := a.engine.Load(path); err != nil {
		return err
	}
	p := project.New()
	p.SetAudioPath(path)
	a.setProject(p, "")
	a.markDirty()
	a.armStop()
	a.notify(0)
	return nil
}

// ReplaceAudio loads an audio file into the current project, keeping its markers
func (a *App) ReplaceAudio(path string) error {
	if err := a.engine.Load(path); err != nil {
		return err
	}
	a.mu.Lock()
	a.project.SetAudioPath(path)
	a.dirty = true
	a.mu.Unlock()
	a.armStop()
	a.notify(0)
	return nil
}

// OpenProject loads a project file and its audio. If the project has been
// opened before, the playhead returns to where it was left.
func (a *App) OpenProject(path string) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}

	if p.HasAudio() {
		if err := a.engine.Load(p.AudioPath); err != nil {
			return fmt.Errorf("project %s: %w", path, err)
		}
	}
	a.setProject(p, path)
	log.Printf("Opened project %s: %d markers, audio %q", path, p.Markers.Len(), p.AudioPath)

	if a.config.Recent != nil && p.HasAudio() {
		entry, err := a.config.Recent.Get(context.Background(), path)
		switch {
		case err == nil && entry.AudioPath == p.AudioPath && entry.PositionMs > 0:
			a.engine.SeekToSample(a.engine.FrameForMs(entry.PositionMs))
		case err != nil && !errors.Is(err, recent.ErrNotFound):
			log.Printf("History lookup failed: %v", err)
		}
	}
	a.remember()

	a.armStop()
	a.notify(0)
	return nil
}

// NewProject starts an empty project on the currently loaded audio
func (a *App) NewProject() {
	p := project.New()
	p.SetAudioPath(a.engine.Path())
	a.setProject(p, "")
	a.armStop()
	a.notify(0)
}

// SaveProject writes the project to path, or to the file it was opened
// from when path is empty
func (a *App) SaveProject(path string) error {
	a.mu.Lock()
	if path == "" {
		path = a.projectPath
	}
	p := a.project
	a.mu.Unlock()

	if path == "" {
		return ErrNoProjectPath
	}
	if err := project.Save(path, p); err != nil {
		return err
	}

	a.mu.Lock()
	a.projectPath = path
	a.dirty = false
	a.mu.Unlock()

	log.Printf("Saved project %s: %d markers", path, p.Markers.Len())
	a.remember()
	a.notify(0)
	return nil
}

// remember records the current project and playhead in the history
func (a *App) remember() {
	if a.config.Recent == nil {
		return
	}
	a.mu.Lock()
	path := a.projectPath
	audioPath := a.project.AudioPath
	a.mu.Unlock()
	if path == "" {
		return
	}

	err := a.config.Recent.Touch(context.Background(), recent.Entry{
		Path:       path,
		AudioPath:  audioPath,
		PositionMs: a.engine.CurrentMs(),
	})
	if err != nil {
		log.Printf("History update failed: %v", err)
	}
}

func (a *App) markDirty() {
	a.mu.Lock()
	a.dirty = true
	a.mu.Unlock()
}

// Play starts playback
func (a *App) Play() error {
	return a.engine.Play()
}

// Pause stops playback
func (a *App) Pause() {
	a.engine.Pause()
}

// TogglePlay plays when stopped and pauses when playing
func (a *App) TogglePlay() error {
	if a.engine.State() == playback.StatePlaying {
		a.engine.Pause()
		return nil
	}
	return a.engine.Play()
}

// Seek moves the playhead by delta
func (a *App) Seek(delta time.Duration) {
	a.engine.SeekToSeconds(float64(a.engine.CurrentMs())/1000 + delta.Seconds())
}

// SeekTo moves the playhead to seconds
func (a *App) SeekTo(seconds float64) {
	a.engine.SeekToSeconds(seconds)
}

// AddMarker places a marker at the playhead
func (a *App) AddMarker() (uint32, bool, error) {
	if a.engine.State() == playback.StateIdle {
		return 0, false, ErrNoAudio
	}
	ms := uint32(min(a.engine.CurrentMs(), math.MaxUint32))
	return ms, a.currentProject().AddMarker(ms), nil
}

// AddMarkerAt places a marker at ms
func (a *App) AddMarkerAt(ms uint32) bool {
	return a.currentProject().AddMarker(ms)
}

// NextMarker moves the playhead to the next marker ahead of it
func (a *App) NextMarker() (uint32, bool) {
	ms, ok := a.nextMarkerAhead(a.currentProject().Markers)
	if !ok {
		return 0, false
	}
	a.engine.SeekToSample(a.engine.FrameForMs(int64(ms)))
	return ms, true
}

// PlayToNextMarker plays and stops at the next marker even when stopping
// at markers is switched off
func (a *App) PlayToNextMarker() error {
	if a.engine.State() == playback.StateIdle {
		return ErrNoAudio
	}
	a.mu.Lock()
	a.untilNext = true
	a.mu.Unlock()

	a.armStop()
	return a.engine.Play()
}

// SetStopAtMarkers switches stopping at every marker on or off
func (a *App) SetStopAtMarkers(on bool) {
	a.mu.Lock()
	a.stopAtMarkers = on
	a.mu.Unlock()
	a.armStop()
	a.notify(0)
}

// StopAtMarkers reports whether playback stops at every marker
func (a *App) StopAtMarkers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopAtMarkers
}

// Markers returns the markers of the open project
func (a *App) Markers() []uint32 {
	return a.currentProject().Markers.Markers()
}

// Recent lists recently used projects
func (a *App) Recent(limit int) ([]recent.Entry, error) {
	if a.config.Recent == nil {
		return nil, nil
	}
	return a.config.Recent.List(context.Background(), limit)
}

// Close records the playhead and shuts the engine down
func (a *App) Close() error {
	a.remember()
	return a.engine.Close()
}
