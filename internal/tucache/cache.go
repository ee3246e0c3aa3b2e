// Package tucache caches parsed translation units by main-file path.
//
// Every Entry carries its own mutex; callers bracket all cursor and
// diagnostic reads with Lock/Unlock (or TryLock where blocking would stall
// interactive work).
package tucache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jward/cnav/internal/semantic"
	"github.com/jward/cnav/internal/slogutil"
)

// ErrClosed is returned by a blocking Get after Close.
var ErrClosed = errors.New("tucache: cache closed")

// Status is the cache state of one file.
type Status int

const (
	StatusAbsent Status = iota
	StatusParsing
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusParsing:
		return "parsing"
	case StatusReady:
		return "ready"
	}
	return "absent"
}

// Entry is one cached translation unit.
type Entry struct {
	mu    sync.Mutex
	path  string
	unit  semantic.Unit
	hash  uint64
	files []string
}

func (e *Entry) Lock()         { e.mu.Lock() }
func (e *Entry) TryLock() bool { return e.mu.TryLock() }
func (e *Entry) Unlock()       { e.mu.Unlock() }

// Path returns the main file of the unit.
func (e *Entry) Path() string { return e.path }

// Unit returns the parsed unit. Only read it while holding the lock.
func (e *Entry) Unit() semantic.Unit { return e.unit }

// Files lists every file the unit was built from.
func (e *Entry) Files() []string { return e.files }

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for background work.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithWarmUp controls whether a non-blocking Get of an absent file starts a
// background parse. Enabled by default.
func WithWarmUp(enabled bool) Option {
	return func(c *Cache) { c.warmUp = enabled }
}

// Cache maps file paths to lazily parsed units.
type Cache struct {
	provider semantic.Provider
	logger   *slog.Logger
	warmUp   bool

	mu      sync.Mutex
	entries map[string]*Entry
	parsing map[string]int
	closed  bool

	group  singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an empty cache parsing through provider.
func New(provider semantic.Provider, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		provider: provider,
		logger:   slogutil.NewDiscardLogger(),
		warmUp:   true,
		entries:  make(map[string]*Entry),
		parsing:  make(map[string]int),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close stops background warm-ups and in-flight parses and waits for them to
// finish.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Status reports whether path is absent, being parsed, or ready.
func (c *Cache) Status(path string) Status {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		return StatusReady
	}
	if c.parsing[path] > 0 {
		return StatusParsing
	}
	return StatusAbsent
}

// Get returns the entry for path. A blocking Get parses an absent file or
// waits for an in-progress parse. A non-blocking Get returns nil unless the
// entry is ready, starting a background warm-up for absent files.
func (c *Cache) Get(ctx context.Context, path string, options []string, blocking bool) (*Entry, error) {
	path = filepath.Clean(path)
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return e, nil
	}
	if !blocking {
		if c.warmUp {
			c.WarmUp(path, options)
		}
		return nil, nil
	}
	// The shared parse belongs to the cache, so one caller giving up does not
	// fail the others waiting on it.
	ch := c.group.DoChan(path, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[path]; ok {
			c.mu.Unlock()
			return e, nil
		}
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		c.wg.Add(1)
		c.mu.Unlock()
		defer c.wg.Done()
		return c.load(c.ctx, path, nil, options)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Entry), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("tucache: get %s: %w", path, ctx.Err())
	}
}

// WarmUp parses path in the background unless it is already cached or
// being parsed.
func (c *Cache) WarmUp(path string, options []string) {
	path = filepath.Clean(path)
	c.mu.Lock()
	_, ready := c.entries[path]
	if c.closed || ready || c.parsing[path] > 0 {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		if _, err := c.Get(c.ctx, path, options, true); err != nil {
			c.logger.Debug("warm up failed", "file", path, "error", err)
		}
	}()
}

// Reparse rebuilds the unit for path from unsaved (or from disk when
// unsaved is nil). Nothing happens when the content hash is unchanged.
func (c *Cache) Reparse(ctx context.Context, path string, unsaved []byte, options []string) (*Entry, error) {
	path = filepath.Clean(path)
	src := unsaved
	if src == nil {
		var err error
		if src, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("tucache: read %s: %w", path, err)
		}
	}
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.hash == xxhash.Sum64(src) {
		return e, nil
	}
	return c.load(ctx, path, src, options)
}

func (c *Cache) load(ctx context.Context, path string, src []byte, options []string) (*Entry, error) {
	c.mu.Lock()
	c.parsing[path]++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.parsing[path]--; c.parsing[path] <= 0 {
			delete(c.parsing, path)
		}
		c.mu.Unlock()
	}()

	if src == nil {
		var err error
		if src, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("tucache: read %s: %w", path, err)
		}
	}
	u, err := c.provider.Parse(ctx, path, src, options)
	if err != nil {
		return nil, fmt.Errorf("tucache: parse %s: %w", path, err)
	}
	e := &Entry{path: path, unit: u, hash: xxhash.Sum64(src), files: u.Files()}

	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()
	c.logger.Debug("parsed translation unit", "file", path, "files", len(e.files))
	return e, nil
}

// Remove drops the entry for path.
func (c *Cache) Remove(path string) {
	path = filepath.Clean(path)
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// RemoveDependents drops every unit built from file and returns their main
// paths.
func (c *Cache) RemoveDependents(file string) []string {
	file = filepath.Clean(file)
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	for p, e := range c.entries {
		for _, f := range e.files {
			if f == file {
				delete(c.entries, p)
				removed = append(removed, p)
				break
			}
		}
	}
	return removed
}

// dirs returns the directories of every file of every cached unit.
func (c *Cache) dirs() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirs := make(map[string]bool)
	for _, e := range c.entries {
		for _, f := range e.files {
			dirs[filepath.Dir(f)] = true
		}
	}
	return dirs
}
