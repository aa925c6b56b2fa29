package procedural

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeFunc receives the name of a procedure whose file changed on disk.
type ChangeFunc func(name string)

// Watcher reports procedure files created, rewritten, renamed or removed
// under the store directory, including changes made by other processes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange ChangeFunc
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Watch starts reporting changes to onChange. Calling it again replaces the
// previous watcher.
func (s *Store) Watch(onChange ChangeFunc) error {
	w, err := newWatcher(s.dir, s.logger, onChange)
	if err != nil {
		return err
	}

	s.watcherMu.Lock()
	prev := s.watcher
	s.watcher = w
	s.watcherMu.Unlock()

	if prev != nil {
		return prev.Stop()
	}
	return nil
}

func newWatcher(dir string, logger zerolog.Logger, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			name, ok := decodeFileName(filepath.Base(event.Name))
			if !ok {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("procedure", name).
					Str("op", event.Op.String()).
					Msg("Procedure change detected")

				w.onChange(name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Procedure watcher error")

		case <-w.stopCh:
			return
		}
	}
}
