package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chirpwatch/chirpwatch/internal/auth"
	"github.com/chirpwatch/chirpwatch/internal/broadcast"
	"github.com/chirpwatch/chirpwatch/internal/config"
	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/poller"
	"github.com/chirpwatch/chirpwatch/internal/registry"
)

// Handler serves the REST and live-update endpoints.
type Handler struct {
	poller      *poller.Poller
	registry    *registry.Registry
	store       models.WatchlistStore // nil when persistence is unavailable
	broadcaster *broadcast.Broadcaster
	authConfig  config.AuthConfig
	logger      *slog.Logger
}

// NewHandler wires the handler's collaborators.
func NewHandler(p *poller.Poller, reg *registry.Registry, store models.WatchlistStore, b *broadcast.Broadcaster, authConfig config.AuthConfig, logger *slog.Logger) *Handler {
	return &Handler{
		poller:      p,
		registry:    reg,
		store:       store,
		broadcaster: b,
		authConfig:  authConfig,
		logger:      logger,
	}
}

// GetState returns the full snapshot of all accounts and server facts.
// GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.poller.StatePayload())
}

// AddAccount appends a new watched account and refreshes it immediately.
// POST /api/accounts with body {"name": ..., "username": ...}
func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := h.registry.Add(body.Name, body.Username)
	if err != nil {
		var validationErr *registry.ValidationError
		switch {
		case errors.As(err, &validationErr):
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
		case errors.Is(err, registry.ErrDuplicateAccount):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("failed to add account", "error", err)
			http.Error(w, "Failed to add account", http.StatusInternalServerError)
		}
		return
	}

	h.persistWatchlist()

	// Refresh through the same routine the timer uses, outside the timer.
	// The request finishes without waiting on the provider; the refreshed
	// state arrives via the next state broadcast.
	go h.poller.RefreshNow(context.Background(), state.Username)

	h.logger.Info("added account", "username", state.Username)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(state)
}

// RefreshAccount triggers an immediate refresh of one account.
// POST /api/accounts/{username}/refresh
func (h *Handler) RefreshAccount(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if !h.registry.Contains(username) {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	// Deliberately not tied to the request context: an in-flight refresh
	// is never cancelled by a client going away.
	h.poller.RefreshNow(context.Background(), username)

	state, ok := h.registry.StateOf(username)
	if !ok {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// Login exchanges the admin password for a JWT.
// POST /api/auth/login with body {"password": ...}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !auth.Enabled(h.authConfig) {
		http.Error(w, "Admin authentication is not configured", http.StatusNotFound)
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !auth.CheckPassword(body.Password, h.authConfig.AdminPasswordHash) {
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(h.authConfig)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Health is a liveness probe.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) persistWatchlist() {
	if h.store == nil {
		return
	}
	if err := h.store.Save(h.registry.Entries()); err != nil {
		// The in-memory registry stays authoritative for this process;
		// the entry is only lost across a restart.
		h.logger.Error("failed to persist watchlist", "error", err)
	}
}
