package httpapi

import (
	"encoding/json"
	"net/http"

	"telephony-bridge/internal/events"
	"telephony-bridge/internal/hub"
	"telephony-bridge/internal/models"
	"telephony-bridge/internal/queue"
)

type PresenceRequest struct {
	AgentID   string          `json:"agent_id"`
	Extension string          `json:"extension"`
	Presence  models.Presence `json:"presence"`
}

// PresenceHandler applies an agent presence change: queue pause-state is
// reconciled fire-and-forget, the change is broadcast, and the response never
// waits on the PBX round trip.
func PresenceHandler(ctrl *queue.Controller, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PresenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if req.AgentID == "" || req.Presence == "" {
			http.Error(w, "agent_id and presence required", http.StatusBadRequest)
			return
		}

		if req.Extension != "" {
			ctrl.SetPresence(req.Extension, req.Presence)
		}

		h.Broadcast(events.AgentPresenceChanged{
			AgentID:   req.AgentID,
			Extension: req.Extension,
			Presence:  req.Presence,
		})

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

type ConnectedAgentsResponse struct {
	AgentIDs []string `json:"agent_ids"`
}

// ConnectedAgentsHandler exposes the set of agents with an open push session,
// used to demote a stale "available" agent whose browser is gone.
func ConnectedAgentsHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := h.ConnectedAgentIDs()
		if ids == nil {
			ids = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ConnectedAgentsResponse{AgentIDs: ids})
	}
}
