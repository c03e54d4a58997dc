package store

import (
	"database/sql"
	"fmt"

	"github.com/chirpwatch/chirpwatch/internal/models"
)

// PostgresStore persists the watchlist in a single table, keeping insertion
// order through an explicit position column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and ensures its schema exists.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist (
			position INTEGER PRIMARY KEY,
			name     TEXT NOT NULL,
			username TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("ensure watchlist table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Load reads the full ordered watchlist.
func (s *PostgresStore) Load() ([]models.WatchlistEntry, error) {
	rows, err := s.db.Query(`SELECT name, username FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchlistEntry
	for rows.Next() {
		var entry models.WatchlistEntry
		if err := rows.Scan(&entry.Name, &entry.Username); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Save replaces the stored list inside one transaction so readers never see
// a half-written watchlist.
func (s *PostgresStore) Save(entries []models.WatchlistEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin watchlist save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM watchlist`); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}

	for i, entry := range entries {
		_, err := tx.Exec(
			`INSERT INTO watchlist (position, name, username) VALUES ($1, $2, $3)`,
			i, entry.Name, entry.Username,
		)
		if err != nil {
			return fmt.Errorf("insert watchlist entry %q: %w", entry.Username, err)
		}
	}

	return tx.Commit()
}
