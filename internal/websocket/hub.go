// Package websocket pushes purchase changes to connected browsers.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukerupert/grocerytracker/internal/model"
)

const (
	TypePurchaseCreated = "purchase_created"
	TypePurchaseDeleted = "purchase_deleted"
)

// Event is one change notification. Purchase is set for creations only.
type Event struct {
	Type     string          `json:"type"`
	ID       int64           `json:"id"`
	Purchase *model.Purchase `json:"purchase,omitempty"`
}

func PurchaseCreated(p model.Purchase) Event {
	return Event{Type: TypePurchaseCreated, ID: p.ID, Purchase: &p}
}

func PurchaseDeleted(id int64) Event {
	return Event{Type: TypePurchaseDeleted, ID: id}
}

// Hub fans events out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// remove is safe to call more than once per client.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// Publish encodes ev once and queues it for every client. A client whose
// queue is full misses the event.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode websocket event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were skipped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
