// Package engine provides the shared playback engine: one queue, one device,
// one source of truth for playback state.
package engine

import (
	"time"

	"github.com/aveline/playhead/internal/app/telemetry"
	"github.com/aveline/playhead/internal/domain/track"
)

// RepeatMode controls what happens when a track finishes naturally.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the queue
	RepeatAll                   // Wrap from the last track to the first
	RepeatOne                   // Replay the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows in the cycle off -> all -> one -> off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses a repeat mode name. Unknown names map to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "all":
		return RepeatAll
	case "one":
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Snapshot is a point-in-time copy of the engine's observable state.
type Snapshot struct {
	Current   *track.Track
	Queue     []track.Track
	Index     int
	Playing   bool
	Position  time.Duration
	Duration  time.Duration
	Volume    float64
	Muted     bool
	Shuffled  bool
	Repeat    RepeatMode
	SessionID string
	Tracking  telemetry.TrackingState
}
