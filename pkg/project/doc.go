// ABOUTME: Project package for marker sessions on a recording
// ABOUTME: Documents the project model and its binary file format
// Package project stores a recording reference together with its markers.
//
// Project files are small binary documents:
//
//	offset  size  field
//	0       8     signature BB 5D C6 89 7E 06 4B D5
//	8       2     format version, big-endian (currently 1)
//	10      n+1   audio path, UTF-8, NUL-terminated (empty when no audio)
//	11+n    4*k   markers in milliseconds, big-endian uint32, to end of file
//
// Save replaces files atomically; Load reports ErrInvalidFile and
// ErrUnsupportedVersion wrapped with the offending path.
//
// Example:
//
//	p := project.New()
//	p.SetAudioPath("/music/take3.flac")
//	p.AddMarker(12500)
//	err := project.Save("take3.skp", p)
package project
