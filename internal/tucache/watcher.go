package tucache

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before evicting.
const DefaultDebounce = 200 * time.Millisecond

// Watcher evicts cached units when any file they were built from changes on
// disk.
type Watcher struct {
	cache    *Cache
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onEvict  func(paths []string)

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]bool
	timer   *time.Timer
	stopped bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher returns a stopped watcher for c. A debounce of zero uses
// DefaultDebounce.
func NewWatcher(c *Cache, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tucache: create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		cache:    c,
		fsw:      fsw,
		logger:   c.logger,
		debounce: debounce,
		watched:  make(map[string]bool),
		pending:  make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// OnEvict registers a callback receiving the main paths of evicted units.
// Set it before Start.
func (w *Watcher) OnEvict(fn func(paths []string)) {
	w.onEvict = fn
}

// Start begins processing file events.
func (w *Watcher) Start() error {
	if err := w.Sync(); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Sync watches the directory of every file in every cached unit. Call it
// after new units are parsed.
func (w *Watcher) Sync() error {
	for dir := range w.cache.dirs() {
		w.mu.Lock()
		seen := w.watched[dir]
		w.watched[dir] = true
		w.mu.Unlock()
		if seen {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("tucache: watch %s: %w", dir, err)
		}
	}
	return nil
}

// Stop closes the underlying watcher and drops pending events.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				w.addEvent(filepath.Clean(ev.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) addEvent(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]bool)
	w.timer = nil
	stopped := w.stopped
	w.mu.Unlock()
	if stopped || len(pending) == 0 {
		return
	}

	var evicted []string
	for path := range pending {
		evicted = append(evicted, w.cache.RemoveDependents(path)...)
	}
	if len(evicted) == 0 {
		return
	}
	w.logger.Debug("evicted stale translation units", "count", len(evicted))
	if w.onEvict != nil {
		w.onEvict(evicted)
	}
}
