// ABOUTME: Project model pairing an audio file reference with its markers
// ABOUTME: Wraps a marker index and an optional audio path
package project

import "github.com/soittokone/soittokone-go/pkg/marker"

// Project is a single recording reference plus the markers placed on it
type Project struct {
	AudioPath string // empty when no audio file has been chosen
	Markers   *marker.Index
}

// New creates an empty project with no audio and no markers
func New() *Project {
	return &Project{Markers: marker.New()}
}

// SetAudioPath points the project at a new audio file
func (p *Project) SetAudioPath(path string) {
	p.AudioPath = path
}

// HasAudio reports whether an audio file is set
func (p *Project) HasAudio() bool {
	return p.AudioPath != ""
}

// AddMarker inserts a marker, reporting false if one already exists there
func (p *Project) AddMarker(timeMs uint32) bool {
	return p.Markers.Insert(timeMs)
}
