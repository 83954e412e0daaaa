package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 32
)

// client is one WebSocket connection with its own send queue. A dedicated
// writer goroutine drains the queue so a slow client never blocks the hub.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writePump drains the send queue onto the connection and keeps it alive
// with pings. Exits when the send queue closes or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks connected clients and broadcasts outbound messages. Every
// broadcast carries a sequence number so clients can discard stale snapshots
// delivered out of order.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	seqMu sync.Mutex
	seq   uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register adds a connection and starts its writer. Returns the client ID.
func (h *Hub) Register(conn *websocket.Conn) string {
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writePump()

	zlog.Debug().Str("client_id", c.id).Msg("ws: client registered")
	return c.id
}

// Unregister removes a connection and stops its writer.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		c.close()
		zlog.Debug().Str("client_id", id).Msg("ws: client unregistered")
	}
}

// nextSeq returns the next broadcast sequence number.
func (h *Hub) nextSeq() uint64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	h.seq++
	return h.seq
}

// Broadcast sends a message to every client. Clients with a full send queue
// are dropped; they reconnect and resync from a fresh snapshot.
func (h *Hub) Broadcast(msg Message) {
	msg.Seq = h.nextSeq()
	data, err := json.Marshal(msg)
	if err != nil {
		zlog.Error().Err(err).Msg("ws: failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			zlog.Warn().Str("client_id", c.id).Msg("ws: send queue full, dropping client")
			h.Unregister(c.id)
		}
	}
}

// Send sends a message to one client.
func (h *Hub) Send(id string, msg Message) error {
	msg.Seq = h.nextSeq()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	select {
	case c.send <- data:
	default:
		h.Unregister(id)
	}
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
