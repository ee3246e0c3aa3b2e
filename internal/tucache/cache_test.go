package tucache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cnav/internal/semantic"
)

// fakeUnit is a Unit with no cursors.
type fakeUnit struct {
	path  string
	files []string
}

func (u *fakeUnit) Path() string                              { return u.path }
func (u *fakeUnit) Files() []string                           { return u.files }
func (u *fakeUnit) CursorAt(string, int, int) semantic.Cursor { return nil }
func (u *fakeUnit) Diagnostics() []semantic.Diagnostic        { return nil }
func (u *fakeUnit) Symbols() []semantic.Symbol                { return nil }

// fakeProvider counts parses and can be held open with a gate.
type fakeProvider struct {
	parses atomic.Int32
	gate   chan struct{}
	deps   map[string][]string
	err    error
}

func (p *fakeProvider) Parse(ctx context.Context, path string, src []byte, options []string) (semantic.Unit, error) {
	p.parses.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &fakeUnit{path: path, files: append([]string{path}, p.deps[path]...)}, nil
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGet_BlockingParsesOnce(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{}
	c := New(p)
	defer c.Close()

	assert.Equal(t, StatusAbsent, c.Status(path))

	e, err := c.Get(context.Background(), path, nil, true)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, path, e.Path())
	assert.Equal(t, StatusReady, c.Status(path))

	again, err := c.Get(context.Background(), path, nil, true)
	require.NoError(t, err)
	assert.Same(t, e, again)
	assert.Equal(t, int32(1), p.parses.Load())
}

func TestGet_ConcurrentBlockingShareOneParse(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{gate: make(chan struct{})}
	c := New(p)
	defer c.Close()

	var wg sync.WaitGroup
	entries := make([]*Entry, 4)
	for i := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Get(context.Background(), path, nil, true)
			assert.NoError(t, err)
			entries[i] = e
		}()
	}

	require.Eventually(t, func() bool { return c.Status(path) == StatusParsing }, time.Second, time.Millisecond)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.parses.Load())
	for _, e := range entries {
		assert.Same(t, entries[0], e)
	}
}

func TestGet_CancelledCallerDoesNotFailSharedParse(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{gate: make(chan struct{})}
	c := New(p)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, path, nil, true)
		first <- err
	}()
	require.Eventually(t, func() bool { return c.Status(path) == StatusParsing }, time.Second, time.Millisecond)

	second := make(chan *Entry, 1)
	go func() {
		e, err := c.Get(context.Background(), path, nil, true)
		assert.NoError(t, err)
		second <- e
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled Get did not return")
	}
	assert.Equal(t, StatusParsing, c.Status(path))

	close(p.gate)
	select {
	case e := <-second:
		require.NotNil(t, e)
		assert.Equal(t, path, e.Path())
	case <-time.After(time.Second):
		t.Fatal("waiting Get did not return")
	}
	assert.Equal(t, int32(1), p.parses.Load())
	assert.Equal(t, StatusReady, c.Status(path))
}

func TestClose_StopsInFlightParse(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{gate: make(chan struct{})}
	c := New(p)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), path, nil, true)
		errc <- err
	}()
	require.Eventually(t, func() bool { return c.Status(path) == StatusParsing }, time.Second, time.Millisecond)

	c.Close()
	assert.ErrorIs(t, <-errc, context.Canceled)

	_, err := c.Get(context.Background(), path, nil, true)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGet_NonBlockingWarmsUp(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	c := New(&fakeProvider{})
	defer c.Close()

	e, err := c.Get(context.Background(), path, nil, false)
	require.NoError(t, err)
	assert.Nil(t, e)

	require.Eventually(t, func() bool { return c.Status(path) == StatusReady }, time.Second, time.Millisecond)
}

func TestGet_NonBlockingWithoutWarmUp(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{}
	c := New(p, WithWarmUp(false))
	defer c.Close()

	e, err := c.Get(context.Background(), path, nil, false)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, StatusAbsent, c.Status(path))
	assert.Equal(t, int32(0), p.parses.Load())
}

func TestGet_ParseErrorIsNotCached(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	c := New(&fakeProvider{err: errors.New("boom")})
	defer c.Close()

	_, err := c.Get(context.Background(), path, nil, true)
	require.Error(t, err)
	assert.Equal(t, StatusAbsent, c.Status(path))
}

func TestEntry_TryLock(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	c := New(&fakeProvider{})
	defer c.Close()

	e, err := c.Get(context.Background(), path, nil, true)
	require.NoError(t, err)

	e.Lock()
	assert.False(t, e.TryLock())
	e.Unlock()
	require.True(t, e.TryLock())
	e.Unlock()
}

func TestReparse_SkipsUnchangedContent(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.cpp", "int a;")
	p := &fakeProvider{}
	c := New(p)
	defer c.Close()

	first, err := c.Reparse(context.Background(), path, nil, nil)
	require.NoError(t, err)

	same, err := c.Reparse(context.Background(), path, []byte("int a;"), nil)
	require.NoError(t, err)
	assert.Same(t, first, same)
	assert.Equal(t, int32(1), p.parses.Load())

	changed, err := c.Reparse(context.Background(), path, []byte("int b;"), nil)
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, int32(2), p.parses.Load())
}

func TestRemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.cpp", "int a;")
	b := writeSource(t, dir, "b.cpp", "int b;")
	c := New(&fakeProvider{})
	defer c.Close()

	for _, p := range []string{a, b} {
		_, err := c.Get(context.Background(), p, nil, true)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusReady, c.Status(a))
	assert.Equal(t, StatusReady, c.Status(b))

	c.Remove(a)
	assert.Equal(t, StatusAbsent, c.Status(a))
	assert.Equal(t, StatusReady, c.Status(b))

	c.Clear()
	assert.Equal(t, StatusAbsent, c.Status(b))
}

func TestRemoveDependents(t *testing.T) {
	dir := t.TempDir()
	h := writeSource(t, dir, "a.h", "void foo();")
	a := writeSource(t, dir, "a.cpp", "#include \"a.h\"")
	b := writeSource(t, dir, "b.cpp", "int b;")
	c := New(&fakeProvider{deps: map[string][]string{a: {h}}})
	defer c.Close()

	for _, p := range []string{a, b} {
		_, err := c.Get(context.Background(), p, nil, true)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{a}, c.RemoveDependents(h))
	assert.Equal(t, StatusAbsent, c.Status(a))
	assert.Equal(t, StatusReady, c.Status(b))
}

func TestWatcher_EvictsOnChange(t *testing.T) {
	dir := t.TempDir()
	h := writeSource(t, dir, "a.h", "void foo();")
	a := writeSource(t, dir, "a.cpp", "#include \"a.h\"")
	c := New(&fakeProvider{deps: map[string][]string{a: {h}}})
	defer c.Close()

	_, err := c.Get(context.Background(), a, nil, true)
	require.NoError(t, err)

	w, err := NewWatcher(c, 20*time.Millisecond)
	require.NoError(t, err)
	evicted := make(chan []string, 1)
	w.OnEvict(func(paths []string) { evicted <- paths })
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(h, []byte("void foo(int);"), 0o644))

	select {
	case paths := <-evicted:
		assert.Equal(t, []string{a}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not evict")
	}
	assert.Equal(t, StatusAbsent, c.Status(a))
}
