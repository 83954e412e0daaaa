package engine

// EventType represents an engine event type.
type EventType int

const (
	EventTrackChanged EventType = iota // A different track was bound
	EventStateChanged                  // Playing/paused flipped or settings changed
	EventQueueChanged                  // Queue contents or order changed
	EventProgress                      // Playhead position advanced
	EventPlaybackError                 // The device rejected a play attempt
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventProgress:
		return "progress"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event represents an engine state change. Consumers pull the full Snapshot;
// the type tells them how much of it to redraw.
type Event struct {
	Type  EventType
	State Snapshot
	Err   error // Set for EventPlaybackError
}
