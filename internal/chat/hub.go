package chat

import (
	"log/slog"
	"sync"
)

// Hub owns in-memory rooms and provides stable room handles.
// Each room carries its own shared presence counter; the hub never touches
// identity state, which stays local to each session.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		rooms:   make(map[string]*Room),
	}
}

// GetOrCreateRoom returns a stable in-memory room handle for a namespace.
func (h *Hub) GetOrCreateRoom(name string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[name]; ok {
		return r
	}

	r := NewRoom(h.log, name, h.metrics)
	h.rooms[name] = r
	return r
}
