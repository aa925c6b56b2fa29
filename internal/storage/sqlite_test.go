package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/cortex/pkg/memory"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT NOT NULL);`

func TestOpen_CreatesLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(path, testSchema)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_PreservesExistingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path, testSchema)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, testSchema)
	require.NoError(t, err)
	defer db.Close()

	var v string
	require.NoError(t, db.QueryRow("SELECT v FROM kv WHERE k = 'a'").Scan(&v))
	assert.Equal(t, "b", v)
}

func TestOpen_ReservedCharactersInPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odd?name#1 %41.db")

	db, err := Open(path, testSchema)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)

	var sync int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&sync))
	assert.Equal(t, 2, sync) // FULL
	require.NoError(t, db.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "odd"))
	assert.True(t, os.IsNotExist(err))

	db, err = Open(path, testSchema)
	require.NoError(t, err)
	defer db.Close()

	var v string
	require.NoError(t, db.QueryRow("SELECT v FROM kv WHERE k = 'a'").Scan(&v))
	assert.Equal(t, "b", v)
}

func TestOpen_EmptyPath(t *testing.T) {
	db, err := Open("", testSchema)
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
	assert.Nil(t, db)
}

func TestCheckpoint(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), testSchema)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, Checkpoint(context.Background(), db))
}

func TestClassify(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Classify(nil))
	})

	t.Run("no rows", func(t *testing.T) {
		err := Classify(fmt.Errorf("retrieve: %w", sql.ErrNoRows))
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})

	t.Run("busy is transient", func(t *testing.T) {
		err := Classify(sqlite3.Error{Code: sqlite3.ErrBusy})
		assert.True(t, memory.IsTransient(err))
	})

	t.Run("locked is transient", func(t *testing.T) {
		err := Classify(fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}))
		assert.True(t, memory.IsTransient(err))
	})

	t.Run("constraint is not transient", func(t *testing.T) {
		err := Classify(sqlite3.Error{Code: sqlite3.ErrConstraint})
		assert.False(t, memory.IsTransient(err))
	})

	t.Run("context errors are not transient", func(t *testing.T) {
		err := Classify(fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.False(t, memory.IsTransient(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("disk I/O error")
		assert.Equal(t, cause, Classify(cause))
	})
}
