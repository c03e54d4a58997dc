package api

import (
	"net/http"

	"github.com/chirpwatch/chirpwatch/internal/auth"
	"github.com/chirpwatch/chirpwatch/internal/metrics"
)

// SetupRoutes registers all endpoints on the mux. Mutating endpoints go
// through the auth middleware, which is a passthrough unless an admin
// password hash is configured.
func SetupRoutes(mux *http.ServeMux, h *Handler, collector *metrics.Collector) {
	requireAdmin := auth.Middleware(h.authConfig)

	mux.HandleFunc("GET /api/state", h.GetState)
	mux.Handle("POST /api/accounts", requireAdmin(http.HandlerFunc(h.AddAccount)))
	mux.Handle("POST /api/accounts/{username}/refresh", requireAdmin(http.HandlerFunc(h.RefreshAccount)))
	mux.HandleFunc("POST /api/auth/login", h.Login)

	mux.HandleFunc("GET /events", h.Events)
	mux.HandleFunc("GET /ws", h.WS)

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", collector.Handler())
}
