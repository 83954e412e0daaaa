package ws

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/app/device"
)

// RemoteDevice is the playback resource as seen by the engine: an audio
// element living in the user's page, driven over the hub with device
// commands. Events flow back in through Dispatch.
type RemoteDevice struct {
	hub *Hub

	mu       sync.RWMutex
	listener device.Listener
}

// NewRemoteDevice creates a remote device on the given hub.
func NewRemoteDevice(hub *Hub) *RemoteDevice {
	return &RemoteDevice{hub: hub}
}

func (d *RemoteDevice) command(name string, payload map[string]any) {
	d.hub.Broadcast(Message{
		Type:    MsgDeviceCommand,
		Name:    name,
		Payload: payload,
	})
}

func (d *RemoteDevice) Load(source string) {
	d.command(DevLoad, map[string]any{"source": source})
}

func (d *RemoteDevice) Play() {
	d.command(DevPlay, nil)
}

func (d *RemoteDevice) Pause() {
	d.command(DevPause, nil)
}

func (d *RemoteDevice) SetPosition(pos time.Duration) {
	d.command(DevSetPosition, map[string]any{"positionMs": pos.Milliseconds()})
}

func (d *RemoteDevice) SetVolume(volume float64) {
	d.command(DevSetVolume, map[string]any{"volume": volume})
}

func (d *RemoteDevice) SetListener(l device.Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = l
}

// Dispatch feeds a device event from the wire into the listener.
func (d *RemoteDevice) Dispatch(name string, payload map[string]any) error {
	d.mu.RLock()
	l := d.listener
	d.mu.RUnlock()
	if l == nil {
		return nil
	}

	switch name {
	case EvTimeUpdate:
		var p TimeUpdatePayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		l.OnTimeUpdate(time.Duration(p.PositionMs) * time.Millisecond)

	case EvDurationChange:
		var p DurationPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		l.OnDurationChange(time.Duration(p.DurationMs) * time.Millisecond)

	case EvPlay:
		l.OnPlay()

	case EvPause:
		l.OnPause()

	case EvEnded:
		l.OnEnded()

	case EvError:
		var p DeviceErrorPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		l.OnPlayError(errors.New(p.Message))

	default:
		zlog.Debug().Str("event", name).Msg("ws: unknown device event")
	}

	return nil
}

var _ device.Interface = (*RemoteDevice)(nil)
