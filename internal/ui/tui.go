// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the marker player
package ui

import (
	"github.com/soittokone/soittokone-go/internal/app"

	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a new TUI model
func NewModel(ctrl Controller) Model {
	return Model{
		ctrl:   ctrl,
		status: app.Status{NextMarkerMs: -1},
	}
}

// Run creates the TUI program. Status updates are delivered with
// program.Send(StatusMsg{...}).
func Run(ctrl Controller) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
