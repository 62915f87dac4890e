package monitor

import (
	"sync"

	"streamloader/internal/model"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonFast = jsoniter.ConfigFastest

// Hub fans cycle reports out to connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client without blocking on slow ones.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// slow client -> skip
		}
	}
}

// PublishCycle encodes r and broadcasts it.
func (h *Hub) PublishCycle(r model.CycleReport) {
	if h.ClientCount() == 0 {
		return
	}
	msg, err := jsonFast.Marshal(r)
	if err != nil {
		h.logger.Errorw("failed to encode cycle report", "error", err)
		return
	}
	h.Broadcast(msg)
}
