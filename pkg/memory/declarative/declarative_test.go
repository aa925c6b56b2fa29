package declarative

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "hippocampus.db")

	s, err := New(Config{
		Path:   path,
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, path
}

func TestNew_EmptyPath(t *testing.T) {
	s, err := New(Config{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
	assert.Nil(t, s)
}

func TestStoreRetrieve(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	value := []byte(`{"source":"raw_data.csv","columns":["id","value","timestamp"]}`)
	require.NoError(t, s.Store(ctx, "Dataset Details", value))

	got, err := s.Retrieve(ctx, "Dataset Details")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRetrieve_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Retrieve(context.Background(), "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestStore_Overwrite(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "k", []byte("first")))
	require.NoError(t, s.Store(ctx, "k", []byte("second")))

	got, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM declarative_memory").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_BinaryRoundTrip(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	value := []byte{0x00, 0xff, 0x10, 0x00, 0x7f}
	require.NoError(t, s.Store(ctx, "blob", value))

	got, err := s.Retrieve(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestStore_EmptyValue(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "empty", nil))

	got, err := s.Retrieve(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_InvalidKey(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Store(ctx, "", []byte("v")), memory.ErrInvalidKey)
	_, err := s.Retrieve(ctx, "")
	assert.ErrorIs(t, err, memory.ErrInvalidKey)
}

func TestStore_SurvivesReopen(t *testing.T) {
	s, path := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "fact", []byte("water boils at 100C")))
	require.NoError(t, s.Close())

	reopened, err := New(Config{Path: path, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Retrieve(ctx, "fact")
	require.NoError(t, err)
	assert.Equal(t, []byte("water boils at 100C"), got)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, s.Store(ctx, fmt.Sprintf("k%d", j), []byte(fmt.Sprintf("w%d", i))))
			}
		}(i)
	}
	wg.Wait()

	for j := 0; j < 10; j++ {
		got, err := s.Retrieve(ctx, fmt.Sprintf("k%d", j))
		require.NoError(t, err)
		assert.Regexp(t, `^w[0-7]$`, string(got))
	}
}

func TestCheckpoint(t *testing.T) {
	s, _ := createTestStore(t)
	require.NoError(t, s.Store(context.Background(), "k", []byte("v")))
	assert.NoError(t, s.Checkpoint(context.Background()))
}
