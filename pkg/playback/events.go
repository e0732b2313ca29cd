// ABOUTME: Playback states and event types
// ABOUTME: Defines what the engine reports to its listener
package playback

import "fmt"

// State is the transport state of the engine
type State int32

const (
	// StateIdle means no file is loaded
	StateIdle State = iota
	// StateStopped means a file is loaded and silent
	StateStopped
	// StatePlaying means the output is consuming the buffer
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EventKind identifies an engine event
type EventKind int

const (
	EventPlayed EventKind = iota + 1
	EventPaused
	EventFileLoaded
	EventTimeChanged
)

func (k EventKind) String() string {
	switch k {
	case EventPlayed:
		return "played"
	case EventPaused:
		return "paused"
	case EventFileLoaded:
		return "file-loaded"
	case EventTimeChanged:
		return "time-changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification from the engine
type Event struct {
	Kind EventKind

	// Path is set for EventFileLoaded
	Path string

	// Seconds is the whole-second position for EventTimeChanged and the
	// whole-second length of the recording for EventFileLoaded
	Seconds int64
}

func (e Event) String() string {
	switch e.Kind {
	case EventFileLoaded:
		return fmt.Sprintf("%s %s (%ds)", e.Kind, e.Path, e.Seconds)
	case EventTimeChanged:
		return fmt.Sprintf("%s %ds", e.Kind, e.Seconds)
	default:
		return e.Kind.String()
	}
}
