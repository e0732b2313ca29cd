// ABOUTME: Playback engine package for a single decoded recording
// ABOUTME: Documents the transport state machine and the real-time render contract
// Package playback plays one decoded recording through an output backend.
//
// The Engine holds the whole recording in memory and exposes transport
// controls (Load, Play, Pause, seeking and a stop-at boundary). The output
// backend calls Engine.Render from its device thread; everything Render
// touches is a single-word atomic, so it never blocks or allocates.
//
// Positions are counted in frames ("samples" in the API): one frame holds
// one sample per channel.
//
// Events are delivered to Config.OnEvent from a dedicated goroutine.
// Time-changed events are throttled to one per elapsed whole second and
// coalesced if the consumer falls behind; it may call back into the engine.
//
// Example:
//
//	eng, err := playback.New(playback.Config{
//	    Source:  decode.NewFileSource(),
//	    Output:  output.NewMalgo(50),
//	    OnEvent: func(ev playback.Event) { log.Println(ev) },
//	})
//	err = eng.Load("interview.mp3")
//	eng.SetStopAtMs(90_000)
//	err = eng.Play()
package playback
