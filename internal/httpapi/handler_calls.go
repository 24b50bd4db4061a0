package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"telephony-bridge/internal/calls"
	"telephony-bridge/internal/models"
)

type OriginateRequest struct {
	Extension   string `json:"extension"`
	Destination string `json:"destination"`
}

type OriginateResponse struct {
	ActionID string `json:"action_id"`
}

func OriginateHandler(tracker *calls.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OriginateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		actionID, err := tracker.Originate(req.Extension, req.Destination)
		if err != nil {
			if errors.Is(err, calls.ErrTelephonyUnavailable) {
				http.Error(w, "telephony unavailable", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OriginateResponse{ActionID: actionID})
	}
}

type ActiveCallsResponse struct {
	Items []models.CallRecord `json:"items"`
}

// ActiveCallsHandler serves the tracker snapshot dashboards poll to
// reconcile after missed push events.
func ActiveCallsHandler(tracker *calls.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ActiveCallsResponse{Items: tracker.Active()})
	}
}
