package httpapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"telephony-bridge/internal/events"
	"telephony-bridge/internal/hub"
)

// StreamHandler holds the push channel open and relays hub messages as
// server-sent events. The synthetic connected event carries the generated
// client id; the browser sends nothing back on this channel.
func StreamHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		clientID := uuid.NewString()
		send := h.Add(clientID)
		defer h.Remove(clientID)

		if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
			h.Associate(clientID, agentID)
		}

		fmt.Fprintf(w, "event: %s\ndata: {\"client_id\":%q}\n\n", events.KindConnected, clientID)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-send:
				if !ok {
					// Replaced or dropped by the hub.
					return
				}
				if _, err := w.Write(msg); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
