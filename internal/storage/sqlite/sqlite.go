// Package sqlite implements the report cache store on a local SQLite file
// via database/sql and the cgo-free modernc driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps database/sql over a single SQLite file for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (creating parent directories as needed) the cache database.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single connection: the store is single-writer and SQLite serializes
	// writes anyway; this avoids SQLITE_BUSY churn between pool conns.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	return &DB{DB: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.DB.Close()
}
