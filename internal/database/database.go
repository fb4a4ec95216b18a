// Package database opens the settings store and applies its schema
// migrations. The store is a single small SQLite file; the only state this
// service persists is configuration (credentials, priority overrides).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// dsnOptions enables WAL, a write-lock wait, and foreign keys.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Open opens the SQLite settings database at dbPath, creating the parent
// directory if needed.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection for SQLite
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
