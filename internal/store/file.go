package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chirpwatch/chirpwatch/internal/models"
)

// FileStore persists the watchlist as an ordered YAML list of
// {name, username} records.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given path. The file is created
// on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the watchlist. A missing file is an empty watchlist.
func (s *FileStore) Load() ([]models.WatchlistEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watchlist %s: %w", s.path, err)
	}

	var entries []models.WatchlistEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", s.path, err)
	}

	return entries, nil
}

// Save writes the full watchlist back, replacing the previous contents. The
// write goes through a temp file and rename so a crash cannot truncate the
// list.
func (s *FileStore) Save(entries []models.WatchlistEntry) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watchlist %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace watchlist %s: %w", s.path, err)
	}

	return nil
}
