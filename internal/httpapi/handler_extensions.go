package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"telephony-bridge/internal/ami"
	"telephony-bridge/internal/config"
	"telephony-bridge/internal/models"
	"telephony-bridge/internal/queue"
)

type ExtensionsResponse struct {
	Items []models.ExtensionStatus `json:"items"`
}

// ExtensionsHandler polls peer registration over the configured range. The
// range can be narrowed per request with from/to query parameters.
func ExtensionsHandler(cfg *config.Config, ctrl *queue.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := cfg.Extensions.Start
		end := cfg.Extensions.End
		if v := r.URL.Query().Get("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				start = n
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				end = n
			}
		}

		statuses, err := ctrl.ExtensionStatuses(r.Context(), start, end)
		if err != nil {
			if errors.Is(err, ami.ErrNotConnected) {
				http.Error(w, "telephony unavailable", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if statuses == nil {
			statuses = []models.ExtensionStatus{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExtensionsResponse{Items: statuses})
	}
}
