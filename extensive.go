package cnav

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/cnav/internal/search"
	"github.com/jward/cnav/internal/store"
)

// extensiveSearch runs req when Extensive Search is enabled. Otherwise the
// request is handed back unrun so the caller can ask before starting it.
func (e *Engine) extensiveSearch(ctx context.Context, origin Location, req search.Request) (Result, error) {
	if len(req.Folders) == 0 {
		req.Folders = e.folders
	}
	if !e.extensive {
		msg := fmt.Sprintf("Extensive search for %q is disabled", req.Spelling)
		e.setStatus(msg)
		return Result{Search: &req, Message: msg}, nil
	}
	return e.Search(ctx, origin, req)
}

// Search runs an Extensive Search and blocks until it completes. A semantic
// answer navigates from origin; textual candidates are returned as choices,
// best first.
func (e *Engine) Search(ctx context.Context, origin Location, req SearchRequest) (Result, error) {
	if len(req.Folders) == 0 {
		req.Folders = e.folders
	}
	s := search.NewSession(req, search.Config{
		Cache:          e.cache,
		Options:        func(path string) []string { return e.CompileOptions(ctx, path) },
		Workers:        e.workers,
		Timeout:        e.searchTimeout,
		StatusInterval: e.statusInterval,
		StatusBurst:    e.statusBurst,
		Status:         e.status,
		Exclude:        e.exclude,
		Logger:         e.logger,
	})
	started := time.Now()
	out, err := s.Run(ctx)
	if err != nil {
		s.Cancel()
		return Result{}, fmt.Errorf("cnav: search %q: %w", req.Spelling, err)
	}
	e.recordSearch(s.ID(), origin, req, out, started)

	switch {
	case out.Target != nil:
		res, err := e.open(origin, *out.Target)
		res.Faults = out.Faults
		return res, err
	case len(out.Candidates) > 0:
		choices := make([]Choice, len(out.Candidates))
		for i, c := range out.Candidates {
			choices[i] = Choice{Label: c.Signature, Location: c.Location()}
		}
		return Result{Choices: choices, Faults: out.Faults}, nil
	}
	msg := fmt.Sprintf("Don't know where the %s is!", req.Mode)
	e.setStatus(msg)
	return Result{Message: msg, Faults: out.Faults}, nil
}

func (e *Engine) recordSearch(id string, origin Location, req search.Request, out search.Outcome, started time.Time) {
	if e.store == nil {
		return
	}
	rec := &store.SearchRecord{
		ID:         id,
		Mode:       req.Mode.String(),
		Spelling:   req.Spelling,
		OriginFile: origin.File,
		Target:     out.Target,
		Candidates: len(out.Candidates),
		Faults:     out.Faults,
		TimedOut:   out.TimedOut,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if err := e.store.InsertSearch(rec); err != nil {
		e.logger.Warn("record search failed", "session", id, "error", err)
	}
}
