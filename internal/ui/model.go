// ABOUTME: Bubbletea model for the marker player TUI
// ABOUTME: Defines application state, key bindings and rendering
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/soittokone/soittokone-go/internal/app"
	"github.com/soittokone/soittokone-go/pkg/playback"
	"github.com/soittokone/soittokone-go/pkg/project"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	seekStep       = 5 * time.Second
	visibleMarkers = 8
	barWidth       = 40
)

// Controller is the part of the application the TUI drives
type Controller interface {
	TogglePlay() error
	Seek(delta time.Duration)
	SeekTo(seconds float64)
	AddMarker() (uint32, bool, error)
	NextMarker() (uint32, bool)
	PlayToNextMarker() error
	SetStopAtMarkers(on bool)
	SaveProject(path string) error
}

// StatusMsg pushes a fresh application snapshot into the TUI
type StatusMsg struct {
	app.Status
}

// resultMsg reports the outcome of a key action
type resultMsg struct {
	text string
	err  error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	ctrl   Controller
	status app.Status

	message string
	failed  bool

	width    int
	height   int
	quitting bool
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = msg.Status
	case resultMsg:
		m.failed = msg.err != nil
		m.message = msg.text
		if msg.err != nil {
			m.message = msg.err.Error()
		}
	}

	return m, nil
}

// handleKey maps keys to controller calls. The calls run as commands so
// that status updates they trigger can be delivered to the program.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		return m, run(func() (string, error) { return "", ctrl.TogglePlay() })
	case "left":
		return m, run(func() (string, error) { ctrl.Seek(-seekStep); return "", nil })
	case "right":
		return m, run(func() (string, error) { ctrl.Seek(seekStep); return "", nil })
	case "home":
		return m, run(func() (string, error) { ctrl.SeekTo(0); return "", nil })
	case "m":
		return m, run(func() (string, error) {
			ms, added, err := ctrl.AddMarker()
			if err != nil {
				return "", err
			}
			if !added {
				return "Marker already at " + FormatMs(int64(ms)), nil
			}
			return "Marker added at " + FormatMs(int64(ms)), nil
		})
	case "n":
		return m, run(func() (string, error) {
			ms, ok := ctrl.NextMarker()
			if !ok {
				return "No marker ahead", nil
			}
			return "Jumped to " + FormatMs(int64(ms)), nil
		})
	case "p":
		return m, run(func() (string, error) { return "", ctrl.PlayToNextMarker() })
	case "s":
		on := !m.status.StopAtMarkers
		return m, run(func() (string, error) {
			ctrl.SetStopAtMarkers(on)
			if on {
				return "Stopping at markers", nil
			}
			return "Playing through markers", nil
		})
	case "w":
		path := savePath(m.status)
		return m, run(func() (string, error) {
			if path == "" {
				return "", app.ErrNoAudio
			}
			if err := ctrl.SaveProject(path); err != nil {
				return "", err
			}
			return "Saved " + filepath.Base(path), nil
		})
	}

	return m, nil
}

func run(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		return resultMsg{text: text, err: err}
	}
}

// savePath picks the project file a save writes to. New projects are saved
// next to their audio file.
func savePath(st app.Status) string {
	if st.ProjectPath != "" {
		return st.ProjectPath
	}
	if st.AudioPath == "" {
		return ""
	}
	return strings.TrimSuffix(st.AudioPath, filepath.Ext(st.AudioPath)) + project.Extension
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Soittokone"))
	b.WriteString("\n\n")

	m.renderFile(&b)
	m.renderTransport(&b)
	m.renderMarkers(&b)

	if m.message != "" {
		style := valueStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString(style.Render(truncate(m.message, max(m.width, 20))))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("space:Play/Pause  ←/→:Seek  home:Start  m:Mark  n:Next  p:Play to next  s:Stops  w:Save  q:Quit"))
	return b.String()
}

func (m Model) renderFile(b *strings.Builder) {
	width := max(m.width-10, 10)

	audio := "(none)"
	if m.status.AudioPath != "" {
		audio = truncate(m.status.AudioPath, width)
	}
	b.WriteString(headerStyle.Render("Audio:   "))
	b.WriteString(valueStyle.Render(audio))
	b.WriteString("\n")

	proj := "(unsaved)"
	if m.status.ProjectPath != "" {
		proj = truncate(m.status.ProjectPath, width)
	}
	if m.status.Dirty {
		proj += " *"
	}
	b.WriteString(headerStyle.Render("Project: "))
	b.WriteString(valueStyle.Render(proj))
	b.WriteString("\n\n")
}

func (m Model) renderTransport(b *strings.Builder) {
	st := m.status

	state := "Idle"
	switch st.State {
	case playback.StatePlaying:
		state = "▶ Playing"
	case playback.StateStopped:
		state = "■ Stopped"
	}

	fmt.Fprintf(b, "%s  [%s] %s / %s\n",
		headerStyle.Render(state),
		renderBar(st.PositionMs, st.DurationMs, barWidth),
		FormatMs(st.PositionMs), FormatMs(st.DurationMs))

	stops := "off"
	if st.StopAtMarkers {
		stops = "on"
	}
	b.WriteString(headerStyle.Render("Stop at markers: "))
	b.WriteString(valueStyle.Render(stops))
	b.WriteString("\n\n")
}

func (m Model) renderMarkers(b *strings.Builder) {
	markers := m.status.Markers
	b.WriteString(headerStyle.Render(fmt.Sprintf("Markers (%d)", len(markers))))
	b.WriteString("\n")

	if len(markers) == 0 {
		b.WriteString(valueStyle.Render("  none"))
		b.WriteString("\n\n")
		return
	}

	// Keep the next marker in view with a little context before it
	start := 0
	if m.status.NextMarkerMs >= 0 {
		for i, ms := range markers {
			if int64(ms) == m.status.NextMarkerMs {
				start = max(i-2, 0)
				break
			}
		}
	} else {
		start = max(len(markers)-visibleMarkers, 0)
	}
	end := min(start+visibleMarkers, len(markers))

	for _, ms := range markers[start:end] {
		if int64(ms) == m.status.NextMarkerMs {
			b.WriteString(markerStyle.Render("  ▸ " + FormatMs(int64(ms))))
		} else {
			b.WriteString(valueStyle.Render("    " + FormatMs(int64(ms))))
		}
		b.WriteString("\n")
	}
	if rest := len(markers) - end; rest > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("    … %d more", rest)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// Utility functions
func renderBar(value, total int64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(min(max(value, 0), total) * int64(width) / total)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}

// FormatMs renders a millisecond time as mm:ss, or h:mm:ss past an hour
func FormatMs(ms int64) string {
	if ms < 0 {
		return "--:--"
	}
	secs := ms / 1000
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
