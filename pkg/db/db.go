package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database is the SQLite results store: run headers, trades, order events
// and the strategy definitions synced from the YAML file.
type Database struct {
	DB *sql.DB
}

// connPragmas are per-connection settings applied right after open.
var connPragmas = []string{
	"PRAGMA foreign_keys = ON",   // trades and events must reference a stored run
	"PRAGMA busy_timeout = 5000", // concurrent window saves wait instead of SQLITE_BUSY
}

// New opens (and creates if needed) the results database at path. The pool
// holds exactly one connection that is never recycled, so ":memory:"
// databases and the connection pragmas live as long as the handle.
func New(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create results db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &Database{DB: db}, nil
}

// Close releases the underlying DB handle.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
