package sources

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/carcrawl/carcrawl/internal/logger"
)

// defaultDebounce coalesces the event bursts editors and atomic writes
// produce into one reload.
const defaultDebounce = 250 * time.Millisecond

// Watcher reloads the registry when its file changes on disk. The watch is
// on the parent directory, so atomic replace-by-rename is seen too.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
	logger   logger.Interface
	path     string
	debounce time.Duration
	onReload func()
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the event coalescing window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload registers a hook invoked after every successful reload.
func WithOnReload(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch starts watching the registry's file. Close releases the watch.
func Watch(registry *Registry, log logger.Interface, opts ...WatcherOption) (*Watcher, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(registry.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		registry: registry,
		fsw:      fsw,
		logger:   log,
		path:     filepath.Clean(registry.Path()),
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.loop()
	log.Info("Watching sources file", "path", w.path)
	return w, nil
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				pending = time.After(w.debounce)
			}
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Sources watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	if err := w.registry.Reload(); err != nil {
		w.logger.Error("Sources reload failed, keeping previous set", "error", err)
		return
	}
	if w.onReload != nil {
		w.onReload()
	}
}
