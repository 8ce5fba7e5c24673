package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay is how long writes must be quiet before the file is reloaded.
// Editors and atomic-rename save paths emit bursts of events, and loading on
// the first one can read a half-written file.
const settleDelay = 50 * time.Millisecond

// Observer is called with the freshly loaded configuration after the watched
// file changes. Observers run on the watcher goroutine and must not block.
type Observer func(Config)

// Watcher reloads the host profile table when its file changes on disk, so
// tuning a per-host delay does not require restarting the engine.
type Watcher struct {
	path      string
	log       *zap.Logger
	fs        *fsnotify.Watcher
	mu        sync.Mutex
	observers []Observer
	done      chan struct{}
}

// Watch starts watching path. The file must exist and parse at call time.
func Watch(path string, log *zap.Logger) (*Watcher, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	// Watch the directory; editors replace files instead of writing in
	// place, which drops a file-level watch.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{path: path, log: log, fs: fs, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Subscribe registers an observer for future reloads.
func (w *Watcher) Subscribe(fn Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) run() {
	settle := time.NewTimer(settleDelay)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce the event burst; reload once writes go quiet.
			if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(settleDelay)
		case <-settle.C:
			cfg, err := Load(w.path)
			if err != nil {
				// Keep the last good configuration on a parse error.
				w.log.Warn("config reload failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.log.Info("config reloaded", zap.String("path", w.path))
			w.notify(cfg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) notify(cfg Config) {
	w.mu.Lock()
	observers := make([]Observer, len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()
	for _, fn := range observers {
		fn(cfg)
	}
}
