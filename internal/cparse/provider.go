// Package cparse implements the semantic provider on top of tree-sitter's C
// and C++ grammars. A Unit is a file plus every header reachable through
// its #include directives; declarations from all of them share one symbol
// table so cursors can be resolved across the include graph.
package cparse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cnav/internal/semantic"
)

// maxIncludeDepth bounds include recursion.
const maxIncludeDepth = 16

// Provider parses C-family sources into Units.
type Provider struct{}

var _ semantic.Provider = (*Provider)(nil)

// NewProvider returns a tree-sitter backed Provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Parse builds a Unit for path. When src is nil the file is read from disk.
// Included headers are always read from disk. Only the main file failing to
// load is an error; unreadable headers become diagnostics.
func (p *Provider) Parse(ctx context.Context, path string, src []byte, options []string) (semantic.Unit, error) {
	path = filepath.Clean(path)
	if _, ok := LanguageForFile(path); !ok {
		return nil, fmt.Errorf("cparse: unsupported file type: %s", path)
	}
	if src == nil {
		var err error
		src, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cparse: read %s: %w", path, err)
		}
	}

	u := newUnit(path)
	l := &loader{u: u, includeDirs: IncludeDirs(options)}
	if err := l.load(ctx, path, src, 0); err != nil {
		return nil, err
	}
	for _, f := range u.order {
		ix := &indexer{u: u, f: f}
		ix.walk(f.root, declCtx{})
	}
	u.collectDiagnostics()
	return u, nil
}

// IncludeDirs extracts header search directories from compiler options.
// Understands -I, -iquote and -isystem, both joined and separated forms.
func IncludeDirs(options []string) []string {
	var dirs []string
	for i := 0; i < len(options); i++ {
		opt := options[i]
		for _, flag := range []string{"-I", "-iquote", "-isystem"} {
			if !strings.HasPrefix(opt, flag) {
				continue
			}
			dir := strings.TrimPrefix(opt, flag)
			if dir == "" && i+1 < len(options) {
				i++
				dir = options[i]
			}
			if dir != "" {
				dirs = append(dirs, filepath.Clean(dir))
			}
			break
		}
	}
	return dirs
}

// file is one parsed source file inside a Unit.
type file struct {
	path     string
	src      []byte
	tree     *sitter.Tree
	root     *sitter.Node
	includes []*include
	declAt   map[sitter.Point]*decl
}

func (f *file) text(n *sitter.Node) string {
	return n.Content(f.src)
}

func (f *file) loc(n *sitter.Node) semantic.Location {
	p := n.StartPoint()
	return semantic.Location{File: f.path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// include is a #include directive and where it resolved to.
type include struct {
	name     string
	system   bool
	resolved string
	start    uint32
	loc      semantic.Location
}

type loader struct {
	u           *unit
	includeDirs []string
}

func (l *loader) load(ctx context.Context, path string, src []byte, depth int) error {
	if _, seen := l.u.byPath[path]; seen {
		return nil
	}
	lang, _ := LanguageForFile(path)
	grammar, ok := grammarFor(lang)
	if !ok {
		return fmt.Errorf("cparse: no grammar for %s", path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fmt.Errorf("cparse: parse %s: %w", path, err)
	}

	f := &file{
		path:   path,
		src:    src,
		tree:   tree,
		root:   tree.RootNode(),
		declAt: make(map[sitter.Point]*decl),
	}
	l.u.byPath[path] = f
	l.u.files = append(l.u.files, f)

	l.collectIncludes(f, f.root)
	for _, inc := range f.includes {
		if inc.resolved == "" || depth >= maxIncludeDepth {
			continue
		}
		if !IsSupported(inc.resolved) {
			continue
		}
		hsrc, err := os.ReadFile(inc.resolved)
		if err != nil {
			inc.resolved = ""
			continue
		}
		if err := l.load(ctx, inc.resolved, hsrc, depth+1); err != nil {
			return err
		}
	}

	// Post-order: headers are indexed before the files including them.
	l.u.order = append(l.u.order, f)
	return nil
}

func (l *loader) collectIncludes(f *file, n *sitter.Node) {
	if n == nil {
		return
	}
	if n.Type() == "preproc_include" {
		pathNode := n.ChildByFieldName("path")
		if pathNode == nil {
			return
		}
		raw := f.text(pathNode)
		inc := &include{
			system: pathNode.Type() == "system_lib_string",
			name:   strings.Trim(raw, "\"<>"),
			start:  n.StartByte(),
			loc:    f.loc(n),
		}
		inc.resolved = l.resolveInclude(f.path, inc)
		f.includes = append(f.includes, inc)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		l.collectIncludes(f, n.NamedChild(i))
	}
}

func (l *loader) resolveInclude(from string, inc *include) string {
	var candidates []string
	if !inc.system {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), inc.name))
	}
	for _, dir := range l.includeDirs {
		candidates = append(candidates, filepath.Join(dir, inc.name))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
