// Package runtime evaluates the optional Risor options script that computes
// per-file compile options.
//
// The script sees two globals, file_path (string) and options (list of
// strings, the configured base options), and evaluates to the options to use
// for that file: a list of strings, a single whitespace-separated string, or
// nil to keep the base options unchanged.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/cnav/internal/slogutil"
)

// Runtime evaluates an options script for source files. Results are cached
// per file until Reset.
type Runtime struct {
	scriptPath string
	scriptsDir string
	logger     *slog.Logger

	mu      sync.Mutex
	source  string
	loaded  bool
	results map[string][]string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeLogger sets the logger backing the script's log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime for the script at scriptPath. Imports inside
// the script resolve relative to the script's directory.
func NewRuntime(scriptPath string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptPath: scriptPath,
		scriptsDir: filepath.Dir(scriptPath),
		logger:     slogutil.NewDiscardLogger(),
		results:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CompileOptions returns the options for file. base is passed to the script
// as the options global and returned unchanged when the script yields nil.
func (r *Runtime) CompileOptions(ctx context.Context, file string, base []string) ([]string, error) {
	r.mu.Lock()
	if opts, ok := r.results[file]; ok {
		r.mu.Unlock()
		return opts, nil
	}
	r.mu.Unlock()

	src, err := r.script()
	if err != nil {
		return nil, err
	}
	result, err := r.eval(ctx, src, r.scriptPath, map[string]any{
		"file_path": file,
		"options":   stringList(base),
	})
	if err != nil {
		return nil, err
	}
	opts, err := toOptions(result, base)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", r.scriptPath, err)
	}

	r.mu.Lock()
	r.results[file] = opts
	r.mu.Unlock()
	r.logger.Debug("computed compile options", "file", file, "count", len(opts))
	return opts, nil
}

// Reset forgets cached results and reloads the script on next use.
func (r *Runtime) Reset() {
	r.mu.Lock()
	r.loaded = false
	r.source = ""
	r.results = make(map[string][]string)
	r.mu.Unlock()
}

func (r *Runtime) script() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.source, nil
	}
	data, err := os.ReadFile(r.scriptPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", r.scriptPath, err)
	}
	r.source, r.loaded = string(data), true
	return r.source, nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns a Risor importer resolving imports against the
// script's directory, or nil when there is none.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	if r.scriptsDir == "" || r.scriptsDir == "." {
		return nil
	}
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}
	return importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: globalNames,
		SourceDir:   r.scriptsDir,
		Extensions:  []string{".risor"},
	})
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"exists":    makeExistsFn(),
		"glob":      makeGlobFn(),
		"read_file": makeReadFileFn(),
		"log":       mustProxy(&logObject{logger: r.logger}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

func stringList(ss []string) *object.List {
	items := make([]object.Object, len(ss))
	for i, s := range ss {
		items[i] = object.NewString(s)
	}
	return object.NewList(items)
}

// toOptions converts a script result into an options slice.
func toOptions(result object.Object, base []string) ([]string, error) {
	switch v := result.(type) {
	case nil, *object.NilType:
		return base, nil
	case *object.String:
		return strings.Fields(v.Value()), nil
	case *object.List:
		items := v.Value()
		opts := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(*object.String)
			if !ok {
				return nil, fmt.Errorf("options[%d]: expected string, got %s", i, item.Type())
			}
			opts = append(opts, s.Value())
		}
		return opts, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %s", result.Type())
}
