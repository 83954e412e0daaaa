// Package device abstracts the single shared playback resource.
//
// The real device is an audio element on the user's page, reached through the
// transport layer; tests use the Mock. Commands are fire-and-forget: the
// device confirms play/pause asynchronously through its Listener, and the
// engine's notion of "playing" follows those callbacks, never command intent.
package device

import "time"

// Interface is the command surface of the playback resource.
// The engine is the only caller; no other component may touch the resource.
type Interface interface {
	// Load sets the audio source. Playback does not start until Play.
	Load(source string)
	// Play asks the device to start or resume playback. The call returns
	// immediately; success or failure arrives via OnPlay or OnPlayError.
	Play()
	// Pause asks the device to pause. Confirmed via OnPause.
	Pause()
	// SetPosition moves the playhead.
	SetPosition(pos time.Duration)
	// SetVolume sets the output volume in [0,1].
	SetVolume(volume float64)
	// SetListener registers the callback sink for device events.
	SetListener(l Listener)
}

// Listener receives device lifecycle events.
type Listener interface {
	// OnTimeUpdate reports playhead progress.
	OnTimeUpdate(pos time.Duration)
	// OnDurationChange reports the track duration once metadata is known.
	OnDurationChange(d time.Duration)
	// OnPlay confirms that the device started playing.
	OnPlay()
	// OnPause confirms that the device paused.
	OnPause()
	// OnEnded signals that the current track finished.
	OnEnded()
	// OnPlayError reports a rejected play attempt (e.g. autoplay blocked).
	OnPlayError(err error)
}
