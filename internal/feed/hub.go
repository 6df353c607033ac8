// Package feed streams inventory events to dashboard clients over
// WebSocket.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pcinventory/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Frame is the wire format for messages sent over the WebSocket.
type Frame struct {
	Type    string          `json:"type"` // event
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks connected dashboard clients and fans bus events out to them.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub and subscribes it to every event on bus.
func NewHub(bus *events.Bus, log zerolog.Logger) *Hub {
	h := &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*client),
	}
	bus.Subscribe(h.publish)
	return h
}

// HandleConnection is the HTTP handler that upgrades to WebSocket.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.log.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Int("clients", h.ActiveConnections()).Msg("Feed client connected")

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	c.close()
	h.log.Info().Str("client", c.id).Int("clients", h.ActiveConnections()).Msg("Feed client disconnected")
}

// readLoop discards client frames and keeps the read deadline fresh.
func (h *Hub) readLoop(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("client", c.id).Msg("Feed read error")
			}
			return
		}
	}
}

// writeLoop is the only writer on the connection.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// publish encodes e once and queues it for every client. Clients whose
// buffer is full are disconnected.
func (h *Hub) publish(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode feed event")
		return
	}
	msg, err := json.Marshal(Frame{Type: "event", Payload: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("client", id).Msg("Feed client too slow, disconnecting")
			delete(h.conns, id)
			c.close()
			c.conn.Close()
		}
	}
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll terminates all active connections.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.conns {
		c.close()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(5*time.Second),
		)
		c.conn.Close()
		delete(h.conns, id)
	}
}
