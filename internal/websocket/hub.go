// Package websocket pushes change notifications to connected UI clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is the envelope of every pushed message.
type Event struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity,omitempty"`
	EntityID uint      `json:"entityId,omitempty"`
	Action   string    `json:"action,omitempty"`
	At       time.Time `json:"at"`
}

// EventReferenceChanged tells clients to refetch a reference list.
const EventReferenceChanged = "REFERENCE_CHANGED"

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu  sync.RWMutex
	log logrus.FieldLogger
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		log:        log.WithField("module", "websocket"),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.ID]; ok && old != c {
				close(old.send)
			}
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.WithField("client", c.ID).Debug("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.ID]; ok && cur == c {
				delete(h.clients, c.ID)
				close(c.send)
				h.log.WithField("client", c.ID).Debug("client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.WithField("client", id).Warn("client send buffer full, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues v for every connected client. It never blocks the caller.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("marshal broadcast")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast queue full, dropping message")
	}
}

// ReferenceChanged announces a registry mutation.
func (h *Hub) ReferenceChanged(entity string, id uint, action string) {
	h.Broadcast(Event{
		Type:     EventReferenceChanged,
		Entity:   entity,
		EntityID: id,
		Action:   action,
		At:       time.Now().UTC(),
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
