// Package websocket streams session snapshots to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/session"
	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	sendBuffer      = 256
)

// Message types sent to clients.
const (
	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
)

// Message is the envelope of every frame sent to a client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	log logger.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:        log,
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run dispatches messages until ctx is canceled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("remote", c.remote).Msg("WebSocket client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug().Str("remote", c.remote).Msg("WebSocket client unregistered")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn().Str("remote", c.remote).Msg("WebSocket client too slow, removing")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts snap, followed by one message per alert it carries.
func (h *Hub) Publish(ctx context.Context, snap *session.Snapshot) error {
	if err := h.send(ctx, Message{Type: TypeSnapshot, Payload: snap}); err != nil {
		return err
	}

	for _, a := range snap.Alerts {
		if err := h.send(ctx, Message{Type: TypeAlert, Payload: a}); err != nil {
			return err
		}
	}

	return nil
}

func (h *Hub) send(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.New().Wrap(errors.ErrPublish, err)
	}

	select {
	case <-h.done:
		return errors.New().WithMessage(errors.ErrUnavailable, "websocket hub stopped")
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return errors.New().WithMessage(errors.ErrUnavailable, "websocket hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS upgrades the request and registers the connection. initial is
// queued to the client before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial []*session.Snapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	for _, snap := range initial {
		data, err := json.Marshal(Message{Type: TypeSnapshot, Payload: snap})
		if err != nil {
			h.log.Error().Err(err).Str("page", snap.Page).Msg("Failed to encode snapshot")
			continue
		}
		c.send <- data
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
