// Package storage opens the SQLite databases backing the durable regions and
// maps driver failures onto memory error kinds.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harun/cortex/pkg/memory"
	"github.com/mattn/go-sqlite3"
)

// busyTimeoutMs bounds how long a writer waits on the database lock before
// the driver reports SQLITE_BUSY.
const busyTimeoutMs = 5000

// Open opens (creating if absent) the SQLite database at path and applies
// schema. Existing data is never dropped.
func Open(path string, schema string) (*sql.DB, error) {
	if path == "" {
		return nil, memory.InvalidConfigf("storage location is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode so readers proceed alongside the single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// dsn builds a file: URI so that '?', '#' and '%' in path stay part of the
// file name instead of starting the driver's parameter list.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(busyTimeoutMs))
	q.Set("_synchronous", "FULL")
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) && !strings.HasPrefix(p, "/") {
		p = "/" + p // drive-letter paths
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: q.Encode()}
	return u.String()
}

// Checkpoint folds the write-ahead log back into the main database file.
func Checkpoint(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return Classify(fmt.Errorf("checkpoint: %w", err))
	}
	return nil
}

// Classify marks lock contention as transient and turns sql.ErrNoRows into
// memory.ErrNotFound. Other errors, context errors included, pass through
// unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return memory.ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return memory.Transient(err)
		}
	}
	return err
}
