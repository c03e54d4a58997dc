package twitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// UserLookup is the part of the API client the resolver depends on.
type UserLookup interface {
	ResolveUserID(ctx context.Context, username string) (string, error)
}

// Resolver maps handles to provider-internal ids, caching each resolution
// for the remaining process lifetime. There is no invalidation: a handle
// renamed upstream keeps resolving to the old id until restart. Known
// staleness limitation, accepted for simplicity.
type Resolver struct {
	lookup UserLookup
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string // lowercase handle -> id
}

// NewResolver creates a resolver backed by the given lookup.
func NewResolver(lookup UserLookup, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Resolve returns the provider id for the handle, hitting the cache
// case-insensitively. Failed lookups are not cached; the next cycle retries.
func (r *Resolver) Resolve(ctx context.Context, username string) (string, error) {
	key := strings.ToLower(username)

	r.mu.Lock()
	if id, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	id, err := r.lookup.ResolveUserID(ctx, username)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", username, err)
	}

	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()

	return id, nil
}
