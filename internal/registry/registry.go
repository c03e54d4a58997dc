package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chirpwatch/chirpwatch/internal/models"
)

// ErrDuplicateAccount is returned by Add when the handle is already watched.
var ErrDuplicateAccount = errors.New("account already exists")

// ValidationError reports a rejected add-account input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Registry is the process-wide table of watched accounts and their last-known
// poll state. All reads and writes go through its methods so that a manual
// add can never interleave with a snapshot taken for a broadcast.
type Registry struct {
	mu       sync.RWMutex
	accounts []*models.Account
	index    map[string]*models.Account // keyed by lowercase username
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]*models.Account)}
}

// Load seeds the registry from persisted entries. Malformed entries (missing
// name or username) and duplicates are silently skipped, keeping the first
// occurrence; usernames are trimmed and a leading @ is stripped.
func (r *Registry) Load(entries []models.WatchlistEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		username := normalizeHandle(entry.Username)
		if name == "" || username == "" {
			continue
		}

		key := strings.ToLower(username)
		if _, exists := r.index[key]; exists {
			continue
		}

		account := &models.Account{Name: name, Username: username}
		r.accounts = append(r.accounts, account)
		r.index[key] = account
	}
}

// Add validates and appends a new account in the uninitialized state. The
// handle must match ^[A-Za-z0-9_]{1,15}$ after trimming and @-stripping, and
// must not collide case-insensitively with an existing account.
func (r *Registry) Add(name, username string) (models.AccountState, error) {
	name = strings.TrimSpace(name)
	username = normalizeHandle(username)

	if name == "" {
		return models.AccountState{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	if username == "" {
		return models.AccountState{}, &ValidationError{Field: "username", Message: "username is required"}
	}
	if !handleRe.MatchString(username) {
		return models.AccountState{}, &ValidationError{Field: "username", Message: "username must be 1-15 characters of letters, digits or underscore"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := r.index[key]; exists {
		return models.AccountState{}, fmt.Errorf("%q: %w", username, ErrDuplicateAccount)
	}

	account := &models.Account{Name: name, Username: username}
	r.accounts = append(r.accounts, account)
	r.index[key] = account

	return account.State(), nil
}

// Usernames returns the canonical handles of all watched accounts, in
// insertion order. Accounts added after the call are not included, which is
// what a poll cycle wants: it refreshes the set it started with.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.accounts))
	for i, account := range r.accounts {
		names[i] = account.Username
	}
	return names
}

// Contains reports whether the handle is watched, case-insensitively.
func (r *Registry) Contains(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.index[strings.ToLower(normalizeHandle(username))]
	return ok
}

// Len returns the number of watched accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// Snapshot copies the serialized state of every account, in insertion order.
func (r *Registry) Snapshot() []models.AccountState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]models.AccountState, len(r.accounts))
	for i, account := range r.accounts {
		states[i] = account.State()
	}
	return states
}

// StateOf returns the serialized state of one account.
func (r *Registry) StateOf(username string) (models.AccountState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.index[strings.ToLower(username)]
	if !ok {
		return models.AccountState{}, false
	}
	return account.State(), true
}

// Entries returns the persistable form of the list, in insertion order.
func (r *Registry) Entries() []models.WatchlistEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.WatchlistEntry, len(r.accounts))
	for i, account := range r.accounts {
		entries[i] = models.WatchlistEntry{Name: account.Name, Username: account.Username}
	}
	return entries
}

// ResolvedID returns the cached provider id for the account, if any.
func (r *Registry) ResolvedID(username string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if account, ok := r.index[strings.ToLower(username)]; ok {
		return account.ResolvedID
	}
	return ""
}

// SetResolvedID records the provider id after a successful identity lookup.
func (r *Registry) SetResolvedID(username, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.index[strings.ToLower(username)]; ok {
		account.ResolvedID = id
	}
}

// BeginAttempt marks the start of a refresh: the previous error is cleared
// and the attempt timestamp is stamped regardless of the eventual outcome.
func (r *Registry) BeginAttempt(username string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.index[strings.ToLower(username)]; ok {
		account.LastError = ""
		account.LastCheckedAt = &at
	}
}

// RecordFailure stores the failure description for the most recent attempt.
// Previously known content is deliberately left untouched: stale data beats
// wiping state on a transient provider error.
func (r *Registry) RecordFailure(username, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.index[strings.ToLower(username)]; ok {
		account.LastError = message
		account.Initialized = true
	}
}

// RefreshBaseline captures the pre-refresh facts change detection needs.
type RefreshBaseline struct {
	Initialized  bool
	LatestItemID string
}

// ApplyItems replaces the account's content wholesale with the freshly
// normalized items (newest first, capped at MaxRecentItems) and returns the
// baseline that was in place before this refresh.
func (r *Registry) ApplyItems(username string, items []models.Content) (RefreshBaseline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.index[strings.ToLower(username)]
	if !ok {
		return RefreshBaseline{}, false
	}

	baseline := RefreshBaseline{
		Initialized:  account.Initialized,
		LatestItemID: account.LatestItemID,
	}

	if len(items) > models.MaxRecentItems {
		items = items[:models.MaxRecentItems]
	}
	account.RecentItems = items
	account.Initialized = true

	if len(items) > 0 {
		account.LatestItemID = items[0].ID
		account.LatestText = items[0].Text
		account.LatestCreatedAt = items[0].CreatedAt
		account.LatestURL = items[0].URL
	} else {
		account.LatestItemID = ""
		account.LatestText = ""
		account.LatestCreatedAt = ""
		account.LatestURL = ""
	}

	return baseline, true
}

func normalizeHandle(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
