package procedural

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	s, err := New(Config{
		Dir:    filepath.Join(t.TempDir(), "cerebellum"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_EmptyDir(t *testing.T) {
	s, err := New(Config{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
	assert.Nil(t, s)
}

func TestNew_KeepsExistingData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cerebellum")
	ctx := context.Background()

	s, err := New(Config{Dir: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.StoreProcedure(ctx, "Data Preprocessing", []byte("steps")))

	reopened, err := New(Config{Dir: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)

	got, err := reopened.LoadProcedure(ctx, "Data Preprocessing")
	require.NoError(t, err)
	assert.Equal(t, []byte("steps"), got)
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	blob := []byte{0x80, 0x04, 0x95, 0x00, 0xff, 'p', 'k', 'l'}
	require.NoError(t, s.StoreProcedure(ctx, "model/v1: weights", blob))

	got, err := s.LoadProcedure(ctx, "model/v1: weights")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestStore_Overwrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreProcedure(ctx, "workflow", []byte("old")))
	require.NoError(t, s.StoreProcedure(ctx, "workflow", []byte("new")))

	got, err := s.LoadProcedure(ctx, "workflow")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)

	names, err := s.ListProcedures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"workflow"}, names)
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadProcedure(context.Background(), "missing")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestInvalidNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.StoreProcedure(ctx, "", []byte("x")), memory.ErrInvalidKey)
	assert.ErrorIs(t, s.StoreProcedure(ctx, strings.Repeat("n", 300), []byte("x")), memory.ErrInvalidKey)
}

func TestNamesDoNotCollide(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Names that a character-stripping sanitizer would map to the same file.
	require.NoError(t, s.StoreProcedure(ctx, "a/b", []byte("slash")))
	require.NoError(t, s.StoreProcedure(ctx, "a_b", []byte("underscore")))
	require.NoError(t, s.StoreProcedure(ctx, "../a b", []byte("dots")))

	for name, want := range map[string]string{"a/b": "slash", "a_b": "underscore", "../a b": "dots"} {
		got, err := s.LoadProcedure(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestListAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	names, err := s.ListProcedures(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.StoreProcedure(ctx, "beta", []byte("b")))
	require.NoError(t, s.StoreProcedure(ctx, "alpha", []byte("a")))

	names, err = s.ListProcedures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, s.DeleteProcedure(ctx, "alpha"))
	assert.ErrorIs(t, s.DeleteProcedure(ctx, "alpha"), memory.ErrNotFound)

	_, err = s.LoadProcedure(ctx, "alpha")
	assert.ErrorIs(t, err, memory.ErrNotFound)

	names, err = s.ListProcedures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)
}

func TestConcurrentOverwrite_NoTornReads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	size := 64 * 1024
	blobA := bytes.Repeat([]byte{'A'}, size)
	blobB := bytes.Repeat([]byte{'B'}, size)
	require.NoError(t, s.StoreProcedure(ctx, "model", blobA))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				blob := blobA
				if (i+j)%2 == 0 {
					blob = blobB
				}
				assert.NoError(t, s.StoreProcedure(ctx, "model", blob))
			}
		}(i)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			got, err := s.LoadProcedure(ctx, "model")
			if !assert.NoError(t, err) {
				return
			}
			if !bytes.Equal(got, blobA) && !bytes.Equal(got, blobB) {
				t.Errorf("observed partial blob of %d bytes", len(got))
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	s.locksMu.Lock()
	assert.Empty(t, s.locks)
	s.locksMu.Unlock()
}

func TestCheckpoint_RemovesOrphans(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreProcedure(ctx, "keep", []byte("k")))

	stale := filepath.Join(s.Dir(), tmpPrefix+"stale")
	fresh := filepath.Join(s.Dir(), tmpPrefix+"fresh")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("in flight"), 0644))
	old := time.Now().Add(-2 * orphanAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, s.Checkpoint(ctx))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	names, err := s.ListProcedures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, names)
}

func TestWatch_ReportsExternalChanges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	changed := make(chan string, 16)
	require.NoError(t, s.Watch(func(name string) { changed <- name }))

	// Simulate another process writing a procedure file directly.
	path, err := s.pathFor("external")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	select {
	case name := <-changed:
		assert.Equal(t, "external", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	got, err := s.LoadProcedure(ctx, "external")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	require.NoError(t, s.Close())
}

func TestDecodeFileName(t *testing.T) {
	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{file: encoding.EncodeToString([]byte("flow")) + blobExt, want: "flow", ok: true},
		{file: tmpPrefix + "abc", ok: false},
		{file: "notes.txt", ok: false},
		{file: "!!!" + blobExt, ok: false},
		{file: blobExt, ok: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.file), func(t *testing.T) {
			got, ok := decodeFileName(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
