// Package hub fans domain events out to every connected dashboard session.
// The hub owns only the registry; each HTTP handler owns its own entry's
// lifecycle (Add on open, Remove on close).
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"telephony-bridge/internal/events"
)

// sendBuffer bounds how far a slow session may fall behind before it is
// dropped. Disconnected viewers reconcile via the periodic full refresh.
const sendBuffer = 64

type client struct {
	id      string
	agentID string
	send    chan []byte
}

// Hub is the process-wide registry of push-channel sessions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *slog.Logger
}

func New(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

// Add registers a session and returns its outbound channel. Re-registering
// an existing id replaces the previous sink.
func (h *Hub) Add(id string) <-chan []byte {
	c := &client{id: id, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old.send)
	}
	h.clients[id] = c
	h.mu.Unlock()

	h.log.Info("push client connected", "client_id", id)
	return c.send
}

// Remove deregisters a session. Safe to call repeatedly or for unknown ids.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.log.Info("push client disconnected", "client_id", id)
	}
}

// Associate attaches an agent identity to an open session once the owning
// browser session has authenticated.
func (h *Hub) Associate(id, agentID string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		c.agentID = agentID
	}
	h.mu.Unlock()
}

// ConnectedAgentIDs returns the distinct agent identities with an open
// session, for presence cross-checks.
func (h *Hub) ConnectedAgentIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool, len(h.clients))
	ids := make([]string, 0, len(h.clients))
	for _, c := range h.clients {
		if c.agentID == "" || seen[c.agentID] {
			continue
		}
		seen[c.agentID] = true
		ids = append(ids, c.agentID)
	}
	return ids
}

// Broadcast serializes the event once and delivers it to every registered
// session. A session whose buffer is full is dropped and removed; delivery
// to the rest is unaffected. Never returns an error to producers.
func (h *Hub) Broadcast(ev events.Event) {
	kind := ev.EventKind()
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", "kind", kind, "error", err)
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", kind, data))

	var stale []string
	h.mu.RLock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.log.Warn("dropping slow push client", "client_id", id)
		h.Remove(id)
	}
}
