package stream

import (
	"context"
	"log"
	"sync"
)

// Hub tracks the connected clients so they can be counted and torn down
// together on shutdown. It never fans out data: every session polls for
// its own connection.
type Hub struct {
	clients map[*Client]bool
	stopped bool
	done    chan struct{}

	stats *Stats
	mu    sync.RWMutex
}

// NewHub creates a hub; call Run to start it.
func NewHub(stats *Stats) *Hub {
	if stats == nil {
		stats = NewStats()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		done:    make(chan struct{}),
		stats:   stats,
	}
}

// Run blocks until ctx is cancelled, then closes every session, drops every
// connection and refuses further registrations.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	<-ctx.Done()

	h.mu.Lock()
	h.stopped = true
	for c := range h.clients {
		c.session.Close()
		c.close()
		delete(h.clients, c)
		h.stats.sessions.Dec(1)
	}
	h.mu.Unlock()
}

// Register adds c. It returns false if the hub has stopped. The client is
// in the map when Register returns, so a following Unregister always
// finds it.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.stats.sessions.Inc(1)
	log.Printf("WebSocket client connected (total: %d)", count)
	return true
}

// Unregister removes c, closing its session and connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		h.stats.sessions.Dec(1)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.session.Close()
	c.close()
	if ok {
		log.Printf("WebSocket client disconnected (total: %d)", count)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub's counters.
func (h *Hub) Stats() *Stats {
	return h.stats
}
