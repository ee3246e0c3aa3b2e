package cnav

import (
	"sync"

	"github.com/jward/cnav/internal/store"
)

// navigationStack records (origin, target) pairs so GoBack can return to
// where a jump started. When a store is attached every change is written
// through, so the stack survives restarts.
type navigationStack struct {
	mu      sync.Mutex
	entries []NavigationEntry
	store   *store.Store
}

func newNavigationStack(s *store.Store) (*navigationStack, error) {
	n := &navigationStack{store: s}
	if s == nil {
		return n, nil
	}
	saved, err := s.Navigation()
	if err != nil {
		return nil, err
	}
	for _, e := range saved {
		n.entries = append(n.entries, NavigationEntry{Origin: e.Origin, Target: e.Target})
	}
	return n, nil
}

func (n *navigationStack) push(origin, target Location) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.store != nil {
		if _, err := n.store.PushNavigation(&store.NavEntry{Origin: origin, Target: target}); err != nil {
			return err
		}
	}
	n.entries = append(n.entries, NavigationEntry{Origin: origin, Target: target})
	return nil
}

func (n *navigationStack) pop() (NavigationEntry, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.entries) == 0 {
		return NavigationEntry{}, false, nil
	}
	if n.store != nil {
		if _, err := n.store.PopNavigation(); err != nil {
			return NavigationEntry{}, false, err
		}
	}
	top := n.entries[len(n.entries)-1]
	n.entries = n.entries[:len(n.entries)-1]
	return top, true, nil
}

// popWhileTarget pops while the top frame targets file.
func (n *navigationStack) popWhileTarget(file string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.store != nil {
		if _, err := n.store.PopNavigationWhileTarget(file); err != nil {
			return 0, err
		}
	}
	popped := 0
	for len(n.entries) > 0 && n.entries[len(n.entries)-1].Target.File == file {
		n.entries = n.entries[:len(n.entries)-1]
		popped++
	}
	return popped, nil
}

func (n *navigationStack) snapshot() []NavigationEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NavigationEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

// trim keeps only the newest max frames.
func (n *navigationStack) trim(max int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if max <= 0 || len(n.entries) <= max {
		return nil
	}
	if n.store != nil {
		if err := n.store.TrimNavigation(max); err != nil {
			return err
		}
	}
	n.entries = append([]NavigationEntry(nil), n.entries[len(n.entries)-max:]...)
	return nil
}

func (n *navigationStack) clear() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.store != nil {
		if err := n.store.ClearNavigation(); err != nil {
			return err
		}
	}
	n.entries = nil
	return nil
}

// open records the jump from origin to target and hands target to the
// opener.
func (e *Engine) open(origin, target Location) (Result, error) {
	if err := e.nav.push(origin, target); err != nil {
		return Result{}, err
	}
	if e.opener != nil {
		e.opener(target)
	}
	e.logger.Debug("navigated", "from", origin.String(), "to", target.String())
	return Result{Target: &target}, nil
}

// Choose completes a deferred choice by navigating from origin to the
// chosen location.
func (e *Engine) Choose(origin Location, choice Choice) (Result, error) {
	return e.open(origin, choice.Location)
}

// GoBack pops the navigation stack and returns the origin of the popped
// jump. ok is false when the stack was empty.
func (e *Engine) GoBack() (loc Location, ok bool, err error) {
	entry, ok, err := e.nav.pop()
	if err != nil || !ok {
		return Location{}, false, err
	}
	if e.opener != nil {
		e.opener(entry.Origin)
	}
	return entry.Origin, true, nil
}

// History returns the navigation stack, oldest jump first.
func (e *Engine) History() []NavigationEntry {
	return e.nav.snapshot()
}

// ClearHistory empties the navigation stack.
func (e *Engine) ClearHistory() error {
	return e.nav.clear()
}

// TrimHistory drops all but the newest max jumps.
func (e *Engine) TrimHistory(max int) error {
	return e.nav.trim(max)
}

// Searches returns up to limit recorded Extensive Search sessions, newest
// first. Nil without a history database.
func (e *Engine) Searches(limit int) ([]*SearchRecord, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.RecentSearches(limit)
}
