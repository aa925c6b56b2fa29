// Package declarative implements the durable exact-match key/value region
// for factual records.
package declarative

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harun/cortex/internal/storage"
	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
)

const schema = `
	CREATE TABLE IF NOT EXISTS declarative_memory (
		memory_key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
`

// Config holds declarative store configuration
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// Store persists factual records in SQLite. Every Store call commits before
// returning.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens the store, creating its database if absent.
func New(cfg Config) (*Store, error) {
	db, err := storage.Open(cfg.Path, schema)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger.With().Str("component", "declarative").Logger(),
	}
	s.logger.Debug().Str("path", cfg.Path).Msg("Declarative store opened")
	return s, nil
}

// Store creates or fully replaces key.
func (s *Store) Store(ctx context.Context, key string, value []byte) error {
	if err := memory.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO declarative_memory (memory_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(memory_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return storage.Classify(fmt.Errorf("store %q: %w", key, err))
	}
	return nil
}

// Retrieve returns the value stored under key.
func (s *Store) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := memory.ValidateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM declarative_memory WHERE memory_key = ?", key,
	).Scan(&value)
	if err != nil {
		return nil, storage.Classify(fmt.Errorf("retrieve %q: %w", key, err))
	}
	return value, nil
}

// Checkpoint flushes the write-ahead log into the database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	return storage.Checkpoint(ctx, s.db)
}

// Close flushes and releases the database.
func (s *Store) Close() error {
	cpErr := storage.Checkpoint(context.Background(), s.db)
	return errors.Join(cpErr, s.db.Close())
}
