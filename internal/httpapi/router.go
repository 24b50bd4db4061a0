package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"telephony-bridge/internal/ami"
	"telephony-bridge/internal/calls"
	"telephony-bridge/internal/config"
	"telephony-bridge/internal/hub"
	"telephony-bridge/internal/queue"
)

func NewRouter(cfg *config.Config, pool *pgxpool.Pool, pbx *ami.Client, tracker *calls.Tracker, ctrl *queue.Controller, h *hub.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"X-API-Key", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", HealthHandler(pool, pbx))
	r.Get("/version", VersionHandler())

	// Chat-channel webhook ingest
	r.With(WebhookTokenAuth(cfg)).Post("/webhooks/messages", WebhookMessageHandler(h))

	// Dashboard APIs
	r.Route("/api", func(api chi.Router) {
		api.Use(APIKeyAuth(cfg))

		api.Get("/events", StreamHandler(h))

		api.Post("/calls/originate", OriginateHandler(tracker))
		api.Get("/calls/active", ActiveCallsHandler(tracker))

		api.Post("/presence", PresenceHandler(ctrl, h))
		api.Get("/agents/connected", ConnectedAgentsHandler(h))

		api.Get("/extensions", ExtensionsHandler(cfg, ctrl))

		api.Get("/cdr", CDRQueryHandler(pool))
		api.Get("/recordings/{id}", RecordingHandler(cfg, pool))
	})

	return r
}
