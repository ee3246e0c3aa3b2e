package cnav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/jward/cnav/internal/cparse"
	"github.com/jward/cnav/internal/runtime"
	"github.com/jward/cnav/internal/search"
	"github.com/jward/cnav/internal/semantic"
	"github.com/jward/cnav/internal/slogutil"
	"github.com/jward/cnav/internal/store"
	"github.com/jward/cnav/internal/tucache"
)

// Engine answers navigation, completion and diagnostics requests for C,
// C++ and Objective-C sources. All methods are safe for concurrent use.
type Engine struct {
	folders        []string
	baseOptions    []string
	scriptPath     string
	workers        int
	searchTimeout  time.Duration
	statusInterval time.Duration
	statusBurst    int
	exclude        []string
	extensive      bool
	popOnClose     bool
	removeOnClose  bool
	warmUp         bool
	ignoreDirs     []string
	dontComplete   []string
	historyPath    string
	watchDebounce  time.Duration
	watch          bool

	status func(string)
	opener func(Location)
	logger *slog.Logger

	provider semantic.Provider
	cache    *tucache.Cache
	watcher  *tucache.Watcher
	script   *runtime.Runtime
	store    *store.Store
	nav      *navigationStack

	mu      sync.Mutex
	buffers map[string][]byte
}

// Option configures an Engine.
type Option func(*Engine)

// WithFolders sets the project folders Extensive Search walks.
func WithFolders(folders ...string) Option {
	return func(e *Engine) {
		e.folders = folders
	}
}

// WithCompileOptions sets the options passed to the parser for every file,
// e.g. "-Iinclude".
func WithCompileOptions(opts ...string) Option {
	return func(e *Engine) {
		e.baseOptions = opts
	}
}

// WithOptionsScript sets a Risor script computing per-file compile options.
// The script receives file_path and options and evaluates to the options
// to use.
func WithOptionsScript(path string) Option {
	return func(e *Engine) {
		e.scriptPath = path
	}
}

// WithWorkers sets the Extensive Search worker count. Zero means one worker
// per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSearchTimeout bounds how long a search worker waits for work.
func WithSearchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.searchTimeout = d
	}
}

// WithExtensiveSearch controls whether fallbacks that need an Extensive
// Search run it. When disabled the Result carries the request unrun.
func WithExtensiveSearch(enabled bool) Option {
	return func(e *Engine) {
		e.extensive = enabled
	}
}

// WithStatus sets the callback receiving transient status messages.
func WithStatus(fn func(string)) Option {
	return func(e *Engine) {
		e.status = fn
	}
}

// WithOpener sets the callback invoked whenever the engine navigates.
func WithOpener(fn func(Location)) Option {
	return func(e *Engine) {
		e.opener = fn
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithHistory persists the navigation stack and the search log in a SQLite
// database at dbPath.
func WithHistory(dbPath string) Option {
	return func(e *Engine) {
		e.historyPath = dbPath
	}
}

// WithFileWatcher drops cached translation units when any of their files
// change on disk. A zero debounce uses the watcher default.
func WithFileWatcher(debounce time.Duration) Option {
	return func(e *Engine) {
		e.watch = true
		e.watchDebounce = debounce
	}
}

// WithConfig applies every setting of cfg. Options after it override
// individual settings.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		e.folders = cfg.Folders
		e.baseOptions = cfg.Options
		e.scriptPath = cfg.OptionsScript
		e.workers = cfg.Workers
		e.searchTimeout = cfg.SearchTimeout.Duration
		e.statusInterval = cfg.StatusInterval.Duration
		e.statusBurst = cfg.StatusBurst
		e.extensive = cfg.ExtensiveSearch
		e.popOnClose = cfg.PopOnClose
		e.removeOnClose = cfg.RemoveOnClose
		e.warmUp = cfg.WarmUpInBackground
		e.exclude = cfg.Exclude
		e.ignoreDirs = cfg.DiagnosticIgnoreDirs
		e.dontComplete = cfg.DontCompleteStartswith
		e.historyPath = cfg.Database
	}
}

// New creates an Engine. With WithHistory the database is opened and
// migrated here.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		workers:        goruntime.NumCPU(),
		searchTimeout:  search.DefaultTimeout,
		statusInterval: search.DefaultStatusInterval,
		statusBurst:    search.DefaultStatusBurst,
		extensive:      true,
		popOnClose:     true,
		removeOnClose:  true,
		warmUp:         true,
		dontComplete:   []string{"operator", "~"},
		logger:         slogutil.NewDiscardLogger(),
		provider:       cparse.NewProvider(),
		buffers:        make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cache = tucache.New(e.provider, tucache.WithLogger(e.logger), tucache.WithWarmUp(e.warmUp))
	if e.scriptPath != "" {
		e.script = runtime.NewRuntime(e.scriptPath, runtime.WithRuntimeLogger(e.logger))
	}

	if e.historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(e.historyPath), 0o755); err != nil {
			e.cache.Close()
			return nil, fmt.Errorf("cnav: create history dir: %w", err)
		}
		s, err := store.NewStore(e.historyPath)
		if err != nil {
			e.cache.Close()
			return nil, fmt.Errorf("cnav: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			e.cache.Close()
			return nil, fmt.Errorf("cnav: migrate: %w", err)
		}
		e.store = s
	}

	nav, err := newNavigationStack(e.store)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cnav: load history: %w", err)
	}
	e.nav = nav

	if e.watch {
		w, err := tucache.NewWatcher(e.cache, e.watchDebounce)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("cnav: %w", err)
		}
		w.OnEvict(func(paths []string) {
			e.logger.Info("dropped stale translation units", "files", paths)
		})
		if err := w.Start(); err != nil {
			w.Stop()
			e.Close()
			return nil, fmt.Errorf("cnav: %w", err)
		}
		e.watcher = w
	}
	return e, nil
}

// Close stops background parsing and releases the history database.
func (e *Engine) Close() error {
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Stop())
	}
	e.cache.Close()
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// CompileOptions returns the parser options for file: the configured base
// options, rewritten by the options script when one is set. A failing
// script is logged and the base options are used.
func (e *Engine) CompileOptions(ctx context.Context, file string) []string {
	if e.script == nil {
		return e.baseOptions
	}
	opts, err := e.script.CompileOptions(ctx, file, e.baseOptions)
	if err != nil {
		e.logger.Warn("options script failed", "file", file, "error", err)
		return e.baseOptions
	}
	return opts
}

func (e *Engine) setStatus(msg string) {
	if e.status != nil {
		e.status(msg)
	}
}

// entry returns the translation unit for file, parsing it if needed.
func (e *Engine) entry(ctx context.Context, file string) (*tucache.Entry, error) {
	entry, err := e.cache.Get(ctx, file, e.CompileOptions(ctx, file), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	if e.watcher != nil {
		if err := e.watcher.Sync(); err != nil {
			e.logger.Debug("watch failed", "file", file, "error", err)
		}
	}
	return entry, nil
}

// source returns the editor buffer for file if one was supplied with
// Update, else the file on disk.
func (e *Engine) source(file string) ([]byte, error) {
	e.mu.Lock()
	buf, ok := e.buffers[file]
	e.mu.Unlock()
	if ok {
		return buf, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	return data, nil
}

// Update supplies unsaved editor content for file and reparses it. Later
// commands on file read this content instead of the disk.
func (e *Engine) Update(ctx context.Context, file string, content []byte) error {
	file = absPath(file)
	e.mu.Lock()
	e.buffers[file] = content
	e.mu.Unlock()
	_, err := e.cache.Reparse(ctx, file, content, e.CompileOptions(ctx, file))
	return err
}

// Reparse rebuilds the translation unit of file from its current content.
func (e *Engine) Reparse(ctx context.Context, file string) error {
	file = absPath(file)
	e.mu.Lock()
	buf := e.buffers[file]
	e.mu.Unlock()
	_, err := e.cache.Reparse(ctx, file, buf, e.CompileOptions(ctx, file))
	return err
}

// WarmUp starts parsing file in the background and returns a status
// message describing what happened.
func (e *Engine) WarmUp(ctx context.Context, file string) string {
	file = absPath(file)
	switch e.cache.Status(file) {
	case tucache.StatusParsing:
		return "Cache is already warming up"
	case tucache.StatusReady:
		return "Cache is already warmed up"
	}
	e.cache.WarmUp(file, e.CompileOptions(ctx, file))
	return "Warming up cache for " + file
}

// ClearCache drops every cached translation unit and the compile options
// computed by the options script, which is reloaded on next use.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	if e.script != nil {
		e.script.Reset()
	}
}

// CacheStatus reports "absent", "parsing" or "ready" for file.
func (e *Engine) CacheStatus(file string) string {
	return e.cache.Status(absPath(file)).String()
}

// FileClosed handles an editor closing file: navigation frames whose
// target is file are popped from the top of the stack and its translation
// unit is dropped, each when enabled.
func (e *Engine) FileClosed(file string) error {
	file = absPath(file)
	e.mu.Lock()
	delete(e.buffers, file)
	e.mu.Unlock()
	if e.removeOnClose {
		e.cache.Remove(file)
	}
	if !e.popOnClose {
		return nil
	}
	n, err := e.nav.popWhileTarget(file)
	if err != nil {
		return fmt.Errorf("cnav: file closed: %w", err)
	}
	if n > 0 {
		e.logger.Debug("popped navigation frames", "file", file, "count", n)
	}
	return nil
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}
