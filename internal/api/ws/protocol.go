// Package ws exposes the engine over a WebSocket JSON protocol.
//
// Four message types flow over one connection: UI commands and device events
// come in, device commands and state snapshots go out. The page's audio
// element is the real playback resource; the engine drives it remotely
// through the device commands and learns what actually happened from the
// device events.
package ws

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/aveline/playhead/internal/app/engine"
	"github.com/aveline/playhead/internal/domain/track"
)

// MessageType discriminates the four message flows.
type MessageType string

const (
	MsgCommand       MessageType = "command"        // UI -> engine
	MsgDeviceEvent   MessageType = "device_event"   // page audio element -> engine
	MsgDeviceCommand MessageType = "device_command" // engine -> page audio element
	MsgState         MessageType = "state"          // engine -> every client
	MsgMediaSignal   MessageType = "media_signal"   // page video players <-> arbitration bus
)

// Command names.
const (
	CmdPlayTrack     = "play_track"
	CmdPlayIndex     = "play_index"
	CmdAddToQueue    = "add_to_queue"
	CmdTogglePlay    = "toggle_play"
	CmdPlay          = "play"
	CmdPause         = "pause"
	CmdNext          = "next"
	CmdPrevious      = "previous"
	CmdSeek          = "seek"
	CmdSetVolume     = "set_volume"
	CmdToggleMute    = "toggle_mute"
	CmdToggleShuffle = "toggle_shuffle"
	CmdSetRepeat     = "set_repeat"
	CmdCycleRepeat   = "cycle_repeat"
	CmdClearQueue    = "clear_queue"
	CmdClosePlayer   = "close_player"
)

// Device event names, mirroring the audio element's event set.
const (
	EvTimeUpdate     = "timeupdate"
	EvDurationChange = "durationchange"
	EvPlay           = "play"
	EvPause          = "pause"
	EvEnded          = "ended"
	EvError          = "error"
)

// Media signal names, matching the arbitration bus topics. Video players on
// the page send pause-audio inbound when they take focus; the engine's
// yield-video goes outbound so they stop before audio starts.
const (
	SigYieldVideo = "yield-video"
	SigPauseAudio = "pause-audio"
)

// Device command names.
const (
	DevLoad        = "load"
	DevPlay        = "play"
	DevPause       = "pause"
	DevSetPosition = "set_position"
	DevSetVolume   = "set_volume"
)

// Message is the wire envelope. Payload shape depends on Name.
type Message struct {
	Type    MessageType    `json:"type"`
	Name    string         `json:"name"`
	Seq     uint64         `json:"seq,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Command payloads.

type PlayTrackPayload struct {
	TrackID      string `mapstructure:"trackId"`
	CollectionID string `mapstructure:"collectionId"`
}

type PlayIndexPayload struct {
	Index int `mapstructure:"index"`
}

type AddToQueuePayload struct {
	TrackID string `mapstructure:"trackId"`
}

type SeekPayload struct {
	PositionMs float64 `mapstructure:"positionMs"`
}

type VolumePayload struct {
	Volume float64 `mapstructure:"volume"`
}

type RepeatPayload struct {
	Mode string `mapstructure:"mode"`
}

// Device event payloads.

type TimeUpdatePayload struct {
	PositionMs float64 `mapstructure:"positionMs"`
}

type DurationPayload struct {
	DurationMs float64 `mapstructure:"durationMs"`
}

type DeviceErrorPayload struct {
	Message string `mapstructure:"message"`
}

// decodePayload decodes a message payload into a typed struct.
func decodePayload(payload map[string]any, out any) error {
	if err := mapstructure.Decode(payload, out); err != nil {
		return errors.Wrap(err, "failed to decode payload")
	}
	return nil
}

// trackJSON is the outbound track representation.
type trackJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

func toTrackJSON(t track.Track) trackJSON {
	return trackJSON{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		ArtworkURL: t.ArtworkURL,
		DurationMs: t.Duration.Milliseconds(),
	}
}

// stateMessage builds an outbound state snapshot message.
func stateMessage(name string, snap engine.Snapshot) Message {
	queue := make([]trackJSON, len(snap.Queue))
	for i, t := range snap.Queue {
		queue[i] = toTrackJSON(t)
	}

	payload := map[string]any{
		"queue": queue,
		"trackingState": map[string]any{
			"trackId":     snap.Tracking.TrackID,
			"contentType": snap.Tracking.ContentType,
			"durationMs":  snap.Tracking.Duration.Milliseconds(),
			"positionMs":  snap.Tracking.Position.Milliseconds(),
			"playing":     snap.Tracking.Playing,
			"active":      snap.Tracking.Active,
		},
		"index":      snap.Index,
		"playing":    snap.Playing,
		"positionMs": snap.Position.Milliseconds(),
		"durationMs": snap.Duration.Milliseconds(),
		"volume":     snap.Volume,
		"muted":      snap.Muted,
		"shuffled":   snap.Shuffled,
		"repeat":     snap.Repeat.String(),
	}
	if snap.Current != nil {
		payload["current"] = toTrackJSON(*snap.Current)
	}

	return Message{
		Type:    MsgState,
		Name:    name,
		Payload: payload,
	}
}
