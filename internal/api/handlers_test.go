package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chirpwatch/chirpwatch/internal/auth"
	"github.com/chirpwatch/chirpwatch/internal/broadcast"
	"github.com/chirpwatch/chirpwatch/internal/config"
	"github.com/chirpwatch/chirpwatch/internal/metrics"
	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/poller"
	"github.com/chirpwatch/chirpwatch/internal/registry"
	"github.com/chirpwatch/chirpwatch/internal/twitter"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, username string) (string, error) {
	return "id-" + username, nil
}

type stubFetcher struct {
	mu        sync.Mutex
	timelines map[string][]twitter.RawTweet
}

func (s *stubFetcher) RecentPosts(_ context.Context, userID string) ([]twitter.RawTweet, map[string]twitter.RawMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelines[userID], nil, nil
}

type memoryStore struct {
	mu      sync.Mutex
	entries []models.WatchlistEntry
	saveErr error
	saves   int
}

func (m *memoryStore) Load() ([]models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

func (m *memoryStore) Save(entries []models.WatchlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries = entries
	return nil
}

type apiFixture struct {
	mux         *http.ServeMux
	registry    *registry.Registry
	store       *memoryStore
	broadcaster *broadcast.Broadcaster
	fetcher     *stubFetcher
}

func newAPIFixture(t *testing.T, authCfg config.AuthConfig, entries ...models.WatchlistEntry) *apiFixture {
	t.Helper()

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("metrics collector: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New()
	reg.Load(entries)

	fetcher := &stubFetcher{timelines: map[string][]twitter.RawTweet{}}
	broadcaster := broadcast.New(logger, collector)
	t.Cleanup(broadcaster.Close)

	p := poller.New(poller.Options{
		Registry:           reg,
		Resolver:           stubResolver{},
		Fetcher:            fetcher,
		Broadcaster:        broadcaster,
		Collector:          collector,
		Clock:              clockwork.NewRealClock(),
		Interval:           time.Minute,
		TokenConfigured:    true,
		CanPersistAccounts: true,
		Logger:             logger,
	})

	store := &memoryStore{}
	h := NewHandler(p, reg, store, broadcaster, authCfg, logger)

	mux := http.NewServeMux()
	SetupRoutes(mux, h, collector)

	return &apiFixture{
		mux:         mux,
		registry:    reg,
		store:       store,
		broadcaster: broadcaster,
		fetcher:     fetcher,
	}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestGetState(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{}, models.WatchlistEntry{Name: "NASA", Username: "NASA"})

	rec := f.do(http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload models.StatePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(payload.Accounts) != 1 || payload.Accounts[0].Username != "NASA" {
		t.Errorf("unexpected accounts: %+v", payload.Accounts)
	}
	if !payload.TokenConfigured || !payload.SupportsRealtimeSSE {
		t.Errorf("unexpected flags: %+v", payload)
	}
	if payload.PollIntervalMS != time.Minute.Milliseconds() {
		t.Errorf("unexpected interval %d", payload.PollIntervalMS)
	}
}

func TestAddAccount(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	rec := f.do(http.MethodPost, "/api/accounts", map[string]string{"name": "Go Team", "username": "@golang"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var state models.AccountState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if state.Username != "golang" {
		t.Errorf("expected stripped handle, got %q", state.Username)
	}

	if !f.registry.Contains("golang") {
		t.Error("expected account in registry")
	}

	f.store.mu.Lock()
	saves := f.store.saves
	f.store.mu.Unlock()
	if saves != 1 {
		t.Errorf("expected one watchlist save, got %d", saves)
	}
}

func TestAddAccountValidation(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{}, models.WatchlistEntry{Name: "NASA", Username: "NASA"})

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"missing username", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"missing name", map[string]string{"username": "x"}, http.StatusBadRequest},
		{"invalid handle", map[string]string{"name": "x", "username": "has space"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"name": "again", "username": "nasa"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/accounts", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body)
			}
		})
	}
}

func TestAddAccountMalformedBody(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAddAccountSurvivesStoreFailure(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})
	f.store.saveErr = errors.New("disk full")

	rec := f.do(http.MethodPost, "/api/accounts", map[string]string{"name": "x", "username": "xaccount"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite store failure, got %d", rec.Code)
	}
	if !f.registry.Contains("xaccount") {
		t.Error("expected account kept in memory")
	}
}

func TestRefreshAccount(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{}, models.WatchlistEntry{Name: "NASA", Username: "NASA"})
	f.fetcher.mu.Lock()
	f.fetcher.timelines["id-NASA"] = []twitter.RawTweet{{ID: "100", Text: "launch"}}
	f.fetcher.mu.Unlock()

	rec := f.do(http.MethodPost, "/api/accounts/NASA/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var state models.AccountState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if state.LatestItemID != "100" {
		t.Errorf("expected refreshed content, got %+v", state)
	}
}

func TestRefreshUnknownAccount(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	rec := f.do(http.MethodPost, "/api/accounts/nobody/refresh", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestLoginNotConfigured(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	rec := f.do(http.MethodPost, "/api/auth/login", map[string]string{"password": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when auth is not configured, got %d", rec.Code)
	}
}

func TestLoginAndGuardedEndpoint(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	authCfg := config.AuthConfig{
		JWTSecret:         "test-secret",
		AdminPasswordHash: hash,
		TokenDuration:     time.Hour,
	}
	f := newAPIFixture(t, authCfg)

	// Mutations are rejected without a token.
	rec := f.do(http.MethodPost, "/api/accounts", map[string]string{"name": "x", "username": "xaccount"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/api/auth/login", map[string]string{"password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/api/auth/login", map[string]string{"password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d: %s", rec.Code, rec.Body)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	token := body["token"]
	if token == "" {
		t.Fatal("expected a token in the login response")
	}

	data, _ := json.Marshal(map[string]string{"name": "x", "username": "xaccount"})
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	f.mux.ServeHTTP(rec2, req)

	if rec2.Code != http.StatusCreated {
		t.Errorf("expected 201 with token, got %d: %s", rec2.Code, rec2.Body)
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	rec := f.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body: %s", rec.Body)
	}
}

func TestEventsStream(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect to /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if line != "event: connected\n" {
		t.Fatalf("expected connected event first, got %q", line)
	}

	// The broadcast reaches the already-subscribed client.
	f.broadcaster.Emit(broadcast.EventState, map[string]string{"hello": "world"})

	found := false
	for !found {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line == fmt.Sprintf("event: %s\n", broadcast.EventState) {
			found = true
		}
	}
}

func TestEventsWithoutBroadcaster(t *testing.T) {
	f := newAPIFixture(t, config.AuthConfig{})
	f.broadcaster.Close()

	rec := f.do(http.MethodGet, "/events", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", rec.Code)
	}
}
