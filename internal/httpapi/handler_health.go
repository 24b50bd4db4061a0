package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"telephony-bridge/internal/ami"
)

type HealthResponse struct {
	Status string `json:"status"`
	DB     bool   `json:"db"`
	PBX    bool   `json:"pbx"`
}

// HealthHandler reports subsystem health. A down PBX session is degraded,
// not fatal: the CRUD side of the dashboard keeps working without telephony.
func HealthHandler(pool *pgxpool.Pool, pbx *ami.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := HealthResponse{Status: "ok", DB: true, PBX: pbx.Connected()}
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				res.DB = false
			}
		}

		code := http.StatusOK
		if !res.DB {
			res.Status = "unavailable"
			code = http.StatusServiceUnavailable
		} else if !res.PBX {
			res.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(res)
	}
}
