//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// Empties the persisted watchlist. The server reloads it on next start.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	result, err := db.Exec("DELETE FROM watchlist")
	if err != nil {
		log.Fatalf("failed to clear watchlist: %v", err)
	}

	rows, _ := result.RowsAffected()
	fmt.Printf("Removed %d watchlist entries\n", rows)
}
