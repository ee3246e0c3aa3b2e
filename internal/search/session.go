// Package search implements Extensive Search: a worker pool that walks the
// project folders, probes candidate files with a regular expression, and
// for implementation searches asks the parse cache for a semantic answer.
package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hbollon/go-edlib"

	"github.com/jward/cnav/internal/semantic"
	"github.com/jward/cnav/internal/slogutil"
	"github.com/jward/cnav/internal/tucache"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultStatusInterval = 100 * time.Millisecond
	DefaultStatusBurst    = 30
)

// Mode selects what a session looks for.
type Mode int

const (
	ModeImplementation Mode = iota
	ModeDeclaration
)

func (m Mode) String() string {
	if m == ModeDeclaration {
		return "definition"
	}
	return "implementation"
}

// Request describes one Extensive Search.
type Request struct {
	Mode     Mode
	Spelling string
	// Name is the file name candidates are scored and ranked against.
	Name string
	// Origin is where the searched symbol was declared. Semantic probes
	// resolve this position inside each candidate's unit. Nil disables them.
	Origin *semantic.Location
	// Pattern and FileFilter override the mode defaults.
	Pattern    *regexp.Regexp
	FileFilter string
	Folders    []string
}

func (r Request) pattern() *regexp.Regexp {
	switch {
	case r.Pattern != nil:
		return r.Pattern
	case r.Mode == ModeDeclaration:
		return DeclarationPattern(r.Spelling)
	}
	return ImplementationPattern(r.Spelling)
}

func (r Request) fileFilter() string {
	switch {
	case r.FileFilter != "":
		return r.FileFilter
	case r.Mode == ModeDeclaration:
		return DeclarationFiles
	}
	return ImplementationFiles
}

// Candidate is a textual match.
type Candidate struct {
	File      string `json:"file"`
	Signature string `json:"signature"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

// Location returns the candidate's position.
func (c Candidate) Location() semantic.Location {
	return semantic.Location{File: c.File, Line: c.Line, Column: c.Column}
}

// Outcome is the final state of a session.
type Outcome struct {
	// Target is set when a semantic probe found the definition.
	Target *semantic.Location
	// Candidates holds textual matches, best first, when Target is nil.
	Candidates []Candidate
	Faults     int
	TimedOut   bool
}

// Cache is the part of the parse cache workers use.
type Cache interface {
	Status(path string) tucache.Status
	Get(ctx context.Context, path string, options []string, blocking bool) (*tucache.Entry, error)
	Remove(path string)
}

// Config carries the session's collaborators and tuning.
type Config struct {
	Cache          Cache
	Options        func(path string) []string
	Workers        int
	Timeout        time.Duration
	StatusInterval time.Duration
	StatusBurst    int
	Status         func(string)
	Exclude        []string
	Logger         *slog.Logger
}

// Session is one Extensive Search. It is not reusable.
type Session struct {
	id      string
	req     Request
	pattern *regexp.Regexp
	filter  string
	cfg     Config
	logger  *slog.Logger

	queue  *Queue
	status *Throttle

	mu         sync.Mutex
	candidates []Candidate

	target   atomic.Pointer[semantic.Location]
	faults   atomic.Int32
	timedOut atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	once    sync.Once
	outcome Outcome
	exited  chan struct{}
	wg      sync.WaitGroup
}

// NewSession prepares a session. Nothing runs until Start.
func NewSession(req Request, cfg Config) *Session {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.StatusBurst <= 0 {
		cfg.StatusBurst = DefaultStatusBurst
	}
	if cfg.Options == nil {
		cfg.Options = func(string) []string { return nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = slogutil.NewDiscardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:      id,
		req:     req,
		pattern: req.pattern(),
		filter:  req.fileFilter(),
		cfg:     cfg,
		logger:  cfg.Logger.With("session", id, "mode", req.Mode.String(), "symbol", req.Spelling),
		queue:   NewQueue(),
		status:  NewThrottle(cfg.Status, cfg.StatusInterval, cfg.StatusBurst),
		ctx:     ctx,
		cancel:  cancel,
		exited:  make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Start launches the worker pool. Calling it twice is a no-op.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Debug("extensive search started", "workers", s.cfg.Workers, "folders", len(s.req.Folders))
	s.queue.Push(Enumerate())
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	go func() {
		s.wg.Wait()
		// Every worker timed out or faulted before FINALIZE was drawn.
		s.complete()
		close(s.exited)
	}()
}

// Wait blocks until the session completes and all of its workers have
// exited, or until ctx ends.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.exited:
		return s.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Run starts the session and waits for it.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	s.Start()
	return s.Wait(ctx)
}

// Cancel ends the session early with whatever has been found so far.
func (s *Session) Cancel() {
	s.complete()
}

func (s *Session) complete() {
	s.once.Do(func() {
		s.cancel()
		s.status.Stop()
		out := Outcome{
			Faults:   int(s.faults.Load()),
			TimedOut: s.timedOut.Load(),
		}
		if t := s.target.Load(); t != nil {
			out.Target = t
		} else {
			out.Candidates = s.rankedCandidates()
		}
		s.outcome = out
		s.logger.Debug("extensive search finished",
			"target", out.Target != nil, "candidates", len(out.Candidates), "faults", out.Faults)
	})
}

func (s *Session) worker(id int) {
	defer s.wg.Done()
	var current string
	defer func() {
		if r := recover(); r != nil {
			s.faults.Add(1)
			s.logger.Error("search worker fault", "worker", id, "file", current, "error", fmt.Sprint(r))
		}
	}()

	for s.target.Load() == nil && s.ctx.Err() == nil {
		item, err := s.queue.Pop(s.ctx, s.cfg.Timeout)
		if err != nil {
			if errors.Is(err, ErrQueueTimeout) {
				s.timedOut.Store(true)
				s.logger.Debug("search worker timed out", "worker", id)
			}
			return
		}
		switch item.Kind {
		case ItemEnumerate:
			s.publish(fmt.Sprintf("Searching for %s...", s.req.Mode))
			s.enumerate()
		case ItemFinalize:
			s.queue.WaitProbes()
			s.complete()
			return
		case ItemShutdown:
			return
		case ItemProbe:
			current = item.Path
			s.runProbe(item.Path)
			current = ""
		}
	}
}

func (s *Session) publish(msg string) {
	if s.cfg.Status != nil {
		s.cfg.Status(msg)
	}
}

// enumerate queues every matching file under the configured folders,
// followed by the shutdown and finalize sentinels.
func (s *Session) enumerate() {
	name := filepath.Base(s.req.Name)
	for _, folder := range s.req.Folders {
		err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if s.ctx.Err() != nil || s.target.Load() != nil {
				return filepath.SkipAll
			}
			rel, relErr := filepath.Rel(folder, path)
			if relErr == nil && rel != "." && excluded(s.cfg.Exclude, filepath.ToSlash(rel)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !matchFile(s.filter, path) {
				return nil
			}
			s.queue.Push(Probe(path, Score(d.Name(), name)))
			return nil
		})
		if err != nil {
			s.logger.Debug("walk failed", "folder", folder, "error", err)
		}
	}
	for i := 0; i < s.cfg.Workers-1; i++ {
		s.queue.Push(Shutdown())
	}
	s.queue.Push(Finalize())
}

func (s *Session) runProbe(path string) {
	defer s.queue.Done()
	if s.target.Load() != nil || s.ctx.Err() != nil {
		return
	}
	s.probe(path)
}

func (s *Session) probe(path string) {
	cache := s.cfg.Cache
	needsEviction := cache == nil || cache.Status(path) == tucache.StatusAbsent
	fine := !needsEviction

	s.status.Update("Searching " + path)

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("skipping unreadable file", "file", path, "error", err)
		return
	}
	if m := s.pattern.FindSubmatchIndex(data); m != nil {
		fine = true
		line, col := lineColumn(data, m[0])
		s.addCandidate(Candidate{File: path, Signature: signature(data, m), Line: line, Column: col})
	}

	if !fine || cache == nil || s.req.Origin == nil || s.req.Mode != ModeImplementation {
		return
	}
	s.semanticProbe(path, needsEviction)
}

// semanticProbe resolves the origin symbol inside path's unit and takes its
// definition as the session target.
func (s *Session) semanticProbe(path string, evict bool) {
	entry, err := s.cfg.Cache.Get(s.ctx, path, s.cfg.Options(path), true)
	if err != nil || entry == nil {
		s.logger.Debug("translation unit unavailable", "file", path, "error", err)
		return
	}
	if evict {
		defer s.cfg.Cache.Remove(path)
	}
	entry.Lock()
	defer entry.Unlock()

	origin := s.req.Origin
	c := entry.Unit().CursorAt(origin.File, origin.Line, origin.Column)
	if c == nil {
		return
	}
	d := c.Definition()
	if d == nil || d.Equal(c) {
		return
	}
	loc := d.Location()
	if s.target.CompareAndSwap(nil, &loc) {
		s.logger.Debug("semantic probe found definition", "file", path, "target", loc.String())
		s.complete()
	}
}

func (s *Session) addCandidate(c Candidate) {
	s.mu.Lock()
	s.candidates = append(s.candidates, c)
	s.mu.Unlock()
}

// rankedCandidates orders candidates by Jaro-Winkler similarity of their
// file name to the request name, then by path and position.
func (s *Session) rankedCandidates() []Candidate {
	s.mu.Lock()
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	s.mu.Unlock()

	name := filepath.Base(s.req.Name)
	sim := make(map[string]float32, len(out))
	for _, c := range out {
		if _, ok := sim[c.File]; ok || name == "" {
			continue
		}
		v, err := edlib.StringsSimilarity(filepath.Base(c.File), name, edlib.JaroWinkler)
		if err == nil {
			sim[c.File] = v
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sim[a.File] != sim[b.File] {
			return sim[a.File] > sim[b.File]
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}
