package models

// WatchlistEntry is one persisted record of the account list. Only the
// display name and handle survive a restart; all poll state is rebuilt.
type WatchlistEntry struct {
	Name     string `json:"name" yaml:"name"`
	Username string `json:"username" yaml:"username"`
}

// WatchlistStore defines persistence for the watched-account list.
type WatchlistStore interface {
	// Load reads the full ordered list. A missing backing store yields an
	// empty list, not an error.
	Load() ([]WatchlistEntry, error)

	// Save replaces the stored list with the given entries, preserving order.
	Save(entries []WatchlistEntry) error
}
