// Package associative implements the durable directed concept graph.
//
// Edges are append-only and never deduplicated: adding (fire, heat) twice
// yields two edges. Nodes exist only as edge endpoints, so a node can never
// disappear while an edge references it.
package associative

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
	CREATE TABLE IF NOT EXISTS associations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_associations_source ON associations(source, id);
`

// Config holds associative store configuration
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// Store persists concept edges in SQLite.
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
		logger: cfg.Logger.With().Str("component", "associative").Logger(),
	}
	s.logger.Debug().Str("path", cfg.Path).Msg("Associative store opened")
	return s, nil
}

// AddAssociation appends the edge source -> target. Both nodes come into
// existence implicitly.
func (s *Store) AddAssociation(ctx context.Context, source, target string) error {
	if err := memory.ValidateKey(source); err != nil {
		return fmt.Errorf("source concept: %w", err)
	}
	if err := memory.ValidateKey(target); err != nil {
		return fmt.Errorf("target concept: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO associations (source, target, created_at) VALUES (?, ?, ?)",
		source, target, time.Now().UnixMilli(),
	)
	if err != nil {
		return storage.Classify(fmt.Errorf("add association %q -> %q: %w", source, target, err))
	}
	return nil
}

// Associations returns the targets of every edge leaving concept, in
// insertion order. An unknown concept yields an empty slice.
func (s *Store) Associations(ctx context.Context, concept string) ([]string, error) {
	if err := memory.ValidateKey(concept); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT target FROM associations WHERE source = ? ORDER BY id", concept,
	)
	if err != nil {
		return nil, storage.Classify(fmt.Errorf("associations of %q: %w", concept, err))
	}
	return scanLabels(rows)
}

// Concepts returns every node that appears as an edge endpoint, sorted.
func (s *Store) Concepts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source FROM associations
		UNION
		SELECT target FROM associations
		ORDER BY 1
	`)
	if err != nil {
		return nil, storage.Classify(fmt.Errorf("list concepts: %w", err))
	}
	return scanLabels(rows)
}

func scanLabels(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, storage.Classify(err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(err)
	}
	return labels, nil
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
