package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/app/engine"
	"github.com/aveline/playhead/internal/app/mediabus"
	"github.com/aveline/playhead/internal/domain/track"
)

// gatewayParticipantID identifies the WebSocket gateway on the media
// arbitration bus. It publishes on behalf of the page's video players, so the
// engine's own yield emissions never bounce back through it.
const gatewayParticipantID = "ws-gateway"

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	resolveLimit = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Catalog resolves track IDs to playable tracks.
type Catalog interface {
	GetTrack(ctx context.Context, trackID string) (track.Track, error)
	GetCollectionTracks(ctx context.Context, collectionID string) ([]track.Track, error)
}

// Server terminates WebSocket connections and routes messages between
// clients, the engine and the remote device.
type Server struct {
	engine  *engine.Engine
	catalog Catalog
	device  *RemoteDevice
	hub     *Hub
	bus     *mediabus.Bus
	router  *mux.Router

	stopYield func()
}

// NewServer wires the handler. The caller owns the engine's lifecycle.
func NewServer(eng *engine.Engine, cat Catalog, dev *RemoteDevice, hub *Hub, bus *mediabus.Bus) *Server {
	s := &Server{
		engine:  eng,
		catalog: cat,
		device:  dev,
		hub:     hub,
		bus:     bus,
	}

	// The arbiter's peers are inline video players on the page, so its
	// outbound signal has to cross the socket too.
	s.stopYield = bus.Subscribe(mediabus.TopicYieldVideo, gatewayParticipantID, func() {
		hub.Broadcast(Message{Type: MsgMediaSignal, Name: SigYieldVideo})
	})

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/v1/state", s.handleState).Methods("GET")
	s.router = r

	go s.pumpEvents()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close detaches the server from the media bus.
func (s *Server) Close() {
	if s.stopYield != nil {
		s.stopYield()
		s.stopYield = nil
	}
}

// pumpEvents forwards engine events to all clients as state snapshots.
func (s *Server) pumpEvents() {
	for ev := range s.engine.Events() {
		s.hub.Broadcast(stateMessage(ev.Type.String(), ev.State))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	msg := stateMessage("snapshot", s.engine.Snapshot())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msg)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	id := s.hub.Register(conn)
	defer s.hub.Unregister(id)

	// New clients start from a full snapshot.
	_ = s.hub.Send(id, stateMessage("snapshot", s.engine.Snapshot()))

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Warn().Err(err).Str("client_id", id).Msg("ws: read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			zlog.Warn().Err(err).Str("client_id", id).Msg("ws: invalid message")
			continue
		}

		switch msg.Type {
		case MsgCommand:
			if err := s.handleCommand(r.Context(), msg); err != nil {
				zlog.Warn().Err(err).Str("command", msg.Name).Msg("ws: command failed")
			}
		case MsgDeviceEvent:
			if err := s.device.Dispatch(msg.Name, msg.Payload); err != nil {
				zlog.Warn().Err(err).Str("event", msg.Name).Msg("ws: device event failed")
			}
		case MsgMediaSignal:
			s.handleMediaSignal(msg)
		default:
			zlog.Debug().Str("type", string(msg.Type)).Msg("ws: unexpected message type")
		}
	}
}

// handleMediaSignal publishes a page-originated signal onto the bus. Only
// pause-audio comes inbound; yield-video is the engine's to emit.
func (s *Server) handleMediaSignal(msg Message) {
	switch msg.Name {
	case SigPauseAudio:
		s.bus.Publish(mediabus.TopicPauseAudio, gatewayParticipantID)
	default:
		zlog.Debug().Str("signal", msg.Name).Msg("ws: unexpected media signal")
	}
}

func (s *Server) handleCommand(ctx context.Context, msg Message) error {
	switch msg.Name {
	case CmdPlayTrack:
		var p PlayTrackPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return s.playTrack(ctx, p)

	case CmdPlayIndex:
		var p PlayIndexPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		s.engine.PlayIndex(p.Index)

	case CmdAddToQueue:
		var p AddToQueuePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		rctx, cancel := context.WithTimeout(ctx, resolveLimit)
		defer cancel()
		t, err := s.catalog.GetTrack(rctx, p.TrackID)
		if err != nil {
			return err
		}
		s.engine.AddToQueue(t)

	case CmdTogglePlay:
		s.engine.TogglePlay()

	case CmdPlay:
		s.engine.Play()

	case CmdPause:
		s.engine.Pause()

	case CmdNext:
		s.engine.Next()

	case CmdPrevious:
		s.engine.Previous()

	case CmdSeek:
		var p SeekPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		s.engine.Seek(time.Duration(p.PositionMs) * time.Millisecond)

	case CmdSetVolume:
		var p VolumePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		s.engine.SetVolume(p.Volume)

	case CmdToggleMute:
		s.engine.ToggleMute()

	case CmdToggleShuffle:
		s.engine.ToggleShuffle()

	case CmdSetRepeat:
		var p RepeatPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		s.engine.SetRepeat(engine.ParseRepeatMode(p.Mode))

	case CmdCycleRepeat:
		s.engine.CycleRepeat()

	case CmdClearQueue:
		s.engine.ClearQueue()

	case CmdClosePlayer:
		s.engine.ClosePlayer()

	default:
		zlog.Debug().Str("command", msg.Name).Msg("ws: unknown command")
	}

	return nil
}

// playTrack resolves the command's IDs and hands the engine a playable
// track, with its collection as the new queue when one is named.
func (s *Server) playTrack(ctx context.Context, p PlayTrackPayload) error {
	rctx, cancel := context.WithTimeout(ctx, resolveLimit)
	defer cancel()

	t, err := s.catalog.GetTrack(rctx, p.TrackID)
	if err != nil {
		return err
	}

	var listing []track.Track
	if p.CollectionID != "" {
		listing, err = s.catalog.GetCollectionTracks(rctx, p.CollectionID)
		if err != nil {
			return err
		}
	}

	s.engine.PlayTrack(t, listing)
	return nil
}
