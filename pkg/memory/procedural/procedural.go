// Package procedural implements the durable named-blob region for serialized
// workflows and models.
//
// Each procedure lives in its own file. Overwrites are written to a temporary
// file, synced, and renamed into place, so a concurrent load observes either
// the old or the new blob in full. Blobs are never inspected.
package procedural

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/harun/cortex/pkg/memory"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	blobExt   = ".proc"
	tmpPrefix = ".tmp-"

	// maxFileName keeps encoded names below common filesystem limits.
	maxFileName = 255

	// orphanAge is how old a temp file must be before Checkpoint removes it.
	orphanAge = time.Minute
)

var encoding = base64.RawURLEncoding

// Config holds procedural store configuration
type Config struct {
	Dir    string
	Logger zerolog.Logger
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

// Store keeps procedures as files under a single directory.
type Store struct {
	dir    string
	logger zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*nameLock

	watcherMu sync.Mutex
	watcher   *Watcher
}

// New opens the store, creating its directory if absent.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, memory.InvalidConfigf("storage location is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create procedure directory: %w", err)
	}

	s := &Store{
		dir:    cfg.Dir,
		logger: cfg.Logger.With().Str("component", "procedural").Logger(),
		locks:  make(map[string]*nameLock),
	}
	s.logger.Debug().Str("dir", cfg.Dir).Msg("Procedural store opened")
	return s, nil
}

// StoreProcedure creates or atomically replaces the blob called name.
func (s *Store) StoreProcedure(ctx context.Context, name string, blob []byte) error {
	path, err := s.pathFor(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	release := s.lock(name)
	defer release()

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate temp name: %w", err)
	}
	tmpPath := filepath.Join(s.dir, tmpPrefix+id)

	if err := writeSynced(tmpPath, blob); err != nil {
		os.Remove(tmpPath)
		return classify(fmt.Errorf("write procedure %q: %w", name, err))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return classify(fmt.Errorf("replace procedure %q: %w", name, err))
	}

	if err := syncDir(s.dir); err != nil {
		return classify(fmt.Errorf("sync procedure directory: %w", err))
	}
	return nil
}

// LoadProcedure returns the blob called name.
func (s *Store) LoadProcedure(ctx context.Context, name string) ([]byte, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classify(fmt.Errorf("load procedure %q: %w", name, err))
	}
	return data, nil
}

// ListProcedures returns every stored procedure name, sorted.
func (s *Store) ListProcedures(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, classify(fmt.Errorf("list procedures: %w", err))
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := decodeFileName(e.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteProcedure removes the blob called name.
func (s *Store) DeleteProcedure(ctx context.Context, name string) error {
	path, err := s.pathFor(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	release := s.lock(name)
	defer release()

	if err := os.Remove(path); err != nil {
		return classify(fmt.Errorf("delete procedure %q: %w", name, err))
	}
	return classify(syncDir(s.dir))
}

// Checkpoint removes temp files left behind by writes that never completed.
func (s *Store) Checkpoint(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return classify(fmt.Errorf("scan procedure directory: %w", err))
	}

	cutoff := time.Now().Add(-orphanAge)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove orphaned temp file: %w", err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Removed orphaned procedure temp files")
	}
	return nil
}

// Dir returns the directory holding the procedures.
func (s *Store) Dir() string {
	return s.dir
}

// Close stops the change watcher, if one was started.
func (s *Store) Close() error {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcher = nil
	return err
}

func (s *Store) pathFor(name string) (string, error) {
	if err := memory.ValidateKey(name); err != nil {
		return "", err
	}
	fileName := encoding.EncodeToString([]byte(name)) + blobExt
	if len(fileName) > maxFileName {
		return "", fmt.Errorf("%w: procedure name too long (%d bytes)", memory.ErrInvalidKey, len(name))
	}
	return filepath.Join(s.dir, fileName), nil
}

func decodeFileName(fileName string) (string, bool) {
	if strings.HasPrefix(fileName, tmpPrefix) || !strings.HasSuffix(fileName, blobExt) {
		return "", false
	}
	raw, err := encoding.DecodeString(strings.TrimSuffix(fileName, blobExt))
	if err != nil || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// lock serializes writers of one name and returns the release func.
func (s *Store) lock(name string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &nameLock{}
		s.locks[name] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, name)
		}
		s.locksMu.Unlock()
	}
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	// Some platforms cannot fsync a directory; the rename itself is still atomic.
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return err
	}
	return nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return memory.ErrNotFound
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
		return memory.Transient(err)
	}
	return err
}
