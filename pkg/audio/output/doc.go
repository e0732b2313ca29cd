// ABOUTME: Audio output package for real-time playback
// ABOUTME: Provides the Output and Renderer interfaces and their backends
// Package output provides pull-model audio playback backends.
//
// A backend owns a device thread that periodically asks a Renderer for
// interleaved float32 frames. Available backends: malgo (default), oto,
// beep, portaudio (requires -tags portaudio) and null (silent, paced by a
// ticker).
//
// Example:
//
//	out, err := output.New("malgo", 50)
//	err = out.Open(44100, 2, renderer)
//	err = out.Start()
//	...
//	err = out.Stop() // returns once the renderer is no longer being called
package output
