// Package emotional implements the durable key/value region whose entries
// always carry a sentiment score in [-1.0, 1.0].
package emotional

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/harun/cortex/internal/storage"
	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
)

const (
	MinSentiment = -1.0
	MaxSentiment = 1.0
)

const schema = `
	CREATE TABLE IF NOT EXISTS emotional_memory (
		memory_key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		sentiment REAL NOT NULL CHECK (sentiment BETWEEN -1.0 AND 1.0),
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_emotional_sentiment ON emotional_memory(sentiment);
`

// Config holds emotional store configuration
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// Store persists sentiment-weighted entries in SQLite.
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
		logger: cfg.Logger.With().Str("component", "emotional").Logger(),
	}
	s.logger.Debug().Str("path", cfg.Path).Msg("Emotional store opened")
	return s, nil
}

// ValidateSentiment rejects NaN and values outside [-1.0, 1.0]. Bounds are inclusive.
func ValidateSentiment(sentiment float64) error {
	if math.IsNaN(sentiment) || sentiment < MinSentiment || sentiment > MaxSentiment {
		return fmt.Errorf("%w: %v", memory.ErrOutOfRangeSentiment, sentiment)
	}
	return nil
}

// Store creates or fully replaces key together with its sentiment.
func (s *Store) Store(ctx context.Context, key string, value []byte, sentiment float64) error {
	if err := memory.ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateSentiment(sentiment); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotional_memory (memory_key, value, sentiment, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(memory_key) DO UPDATE SET
			value = excluded.value,
			sentiment = excluded.sentiment,
			updated_at = excluded.updated_at
	`, key, value, sentiment, time.Now().UnixMilli())
	if err != nil {
		return storage.Classify(fmt.Errorf("store %q: %w", key, err))
	}
	return nil
}

// Retrieve returns the entry stored under key.
func (s *Store) Retrieve(ctx context.Context, key string) (memory.Entry, error) {
	if err := memory.ValidateKey(key); err != nil {
		return memory.Entry{}, err
	}

	var (
		entry     = memory.Entry{Key: key}
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, sentiment, updated_at FROM emotional_memory WHERE memory_key = ?", key,
	).Scan(&entry.Value, &entry.Sentiment, &updatedAt)
	if err != nil {
		return memory.Entry{}, storage.Classify(fmt.Errorf("retrieve %q: %w", key, err))
	}
	entry.UpdatedAt = time.UnixMilli(updatedAt)
	return entry, nil
}

// QueryBySentiment returns entries whose sentiment lies in [min, max],
// strongest sentiment first.
func (s *Store) QueryBySentiment(ctx context.Context, min, max float64) ([]memory.Entry, error) {
	if err := ValidateSentiment(min); err != nil {
		return nil, err
	}
	if err := ValidateSentiment(max); err != nil {
		return nil, err
	}
	if min > max {
		return nil, fmt.Errorf("%w: min %v exceeds max %v", memory.ErrOutOfRangeSentiment, min, max)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_key, value, sentiment, updated_at
		FROM emotional_memory
		WHERE sentiment BETWEEN ? AND ?
		ORDER BY sentiment DESC, memory_key ASC
	`, min, max)
	if err != nil {
		return nil, storage.Classify(fmt.Errorf("query sentiment: %w", err))
	}
	defer rows.Close()

	entries := []memory.Entry{}
	for rows.Next() {
		var (
			entry     memory.Entry
			updatedAt int64
		)
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.Sentiment, &updatedAt); err != nil {
			return nil, storage.Classify(fmt.Errorf("scan entry: %w", err))
		}
		entry.UpdatedAt = time.UnixMilli(updatedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(fmt.Errorf("query sentiment: %w", err))
	}
	return entries, nil
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
