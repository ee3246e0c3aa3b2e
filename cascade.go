package cnav

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/cnav/internal/search"
	"github.com/jward/cnav/internal/semantic"
	"github.com/jward/cnav/internal/tucache"
)

const (
	msgNoParent         = "No parent to go to!"
	msgNoImplementation = "Don't know where the implementation is!"
)

// implementationExts are tried, in order, when looking for the source file
// next to a header.
var implementationExts = []string{"cpp", "c", "cc", "m", "mm"}

// step is what one branch of the resolution cascade decided. At most one
// field is set; the zero step means "no answer".
type step struct {
	target  *Location
	choices []Choice
	search  *search.Request

	// declared is a function with no definition in the unit. When it is
	// declared in a header the source files beside it are probed first,
	// then it is searched for.
	declared *Location
	spelling string
}

func targetStep(c semantic.Cursor) step {
	loc := c.Location()
	return step{target: &loc}
}

// GotoDefinition navigates from the symbol at (file, line, col) to its
// declaration: the canonical declaration of a definition, the overridden
// base method, a variable's type, a class's base, the declaration a
// reference denotes, or an included file.
func (e *Engine) GotoDefinition(ctx context.Context, file string, line, col int) (Result, error) {
	file = absPath(file)
	origin := Location{File: file, Line: line, Column: col}
	src, err := e.source(file)
	if err != nil {
		return Result{}, err
	}
	entry, err := e.entry(ctx, file)
	if err != nil {
		return Result{}, err
	}
	spelling := wordAt(src, line, col)

	entry.Lock()
	u := entry.Unit()
	st, fallback := definitionStep(u.CursorAt(file, line, col), spelling)
	if fallback {
		st = e.syntacticStep(u, src, file, line, col)
	}
	entry.Unlock()

	return e.conclude(ctx, origin, st, msgNoParent)
}

// GotoImplementation navigates from the symbol at (file, line, col) to its
// definition. A function with no definition in the unit is looked up in the
// source files beside its header, if it has one, then by Extensive Search.
func (e *Engine) GotoImplementation(ctx context.Context, file string, line, col int) (Result, error) {
	file = absPath(file)
	origin := Location{File: file, Line: line, Column: col}
	src, err := e.source(file)
	if err != nil {
		return Result{}, err
	}
	entry, err := e.entry(ctx, file)
	if err != nil {
		return Result{}, err
	}
	spelling := wordAt(src, line, col)

	entry.Lock()
	st := implementationStep(entry.Unit().CursorAt(file, line, col), spelling)
	entry.Unlock()

	if st.declared != nil {
		decl := *st.declared
		if t := e.besideHeader(ctx, decl, file); t != nil {
			st = step{target: t}
		} else {
			st = step{search: &search.Request{
				Mode:     search.ModeImplementation,
				Spelling: st.spelling,
				Name:     decl.File,
				Origin:   &decl,
			}}
		}
	}
	return e.conclude(ctx, origin, st, msgNoImplementation)
}

// definitionStep runs the goto-definition cascade on c. fallback is true
// when c does not name the word under the caret and the line has to be
// classified syntactically instead.
func definitionStep(c semantic.Cursor, spelling string) (st step, fallback bool) {
	if c != nil && c.Kind() == semantic.KindInclusionDirective {
		if f := c.IncludedFile(); f != "" {
			return step{target: &Location{File: f}}, false
		}
		return step{}, false
	}
	if unresolved(c, spelling) {
		return step{}, true
	}

	ref := c.Reference()
	if !c.Equal(ref) {
		return targetStep(ref), false
	}
	if can := c.CanonicalCursor(); can != nil && !can.Equal(c) {
		return targetStep(can), false
	}
	o := c.Overridden()
	switch {
	case len(o) == 1:
		return targetStep(o[0]), false
	case len(o) > 1:
		return step{choices: overrideChoices(o)}, false
	case c.Kind().IsVariableDecl():
		return step{target: typeRefTarget(c)}, false
	case c.Kind().IsClassDecl():
		return step{target: baseTarget(c)}, false
	}
	return step{}, false
}

// implementationStep runs the goto-implementation cascade on c.
func implementationStep(c semantic.Cursor, spelling string) step {
	if spelling == "" {
		return step{}
	}
	if unresolved(c, spelling) {
		return step{search: &search.Request{
			Mode:     search.ModeImplementation,
			Spelling: spelling,
			Name:     spelling,
		}}
	}

	d := c.Definition()
	switch {
	case d != nil && !d.Equal(c):
		return targetStep(d)
	case d != nil && c.Kind().IsVariableDecl():
		return step{target: typeRefTarget(c)}
	case c.Kind().IsClassDecl():
		return step{target: baseTarget(c)}
	case d == nil:
		if c.Kind().IsReference() {
			c = c.Reference()
		}
		if c.Kind().IsCallable() {
			loc := c.Location()
			return step{declared: &loc, spelling: c.Spelling()}
		}
	}
	return step{}
}

// unresolved reports whether c fails to name the word under the caret: no
// cursor, a cursor for something else, or a name the unit does not declare.
func unresolved(c semantic.Cursor, spelling string) bool {
	return c == nil || c.Kind() == semantic.KindInvalid || c.Spelling() != spelling ||
		c.Reference() == nil
}

// typeRefTarget returns the definition of the type named in a variable
// declaration. Only the first type reference is considered.
func typeRefTarget(c semantic.Cursor) *Location {
	for _, child := range c.Children() {
		if child.Kind() != semantic.KindTypeRef {
			continue
		}
		if d := child.Definition(); d != nil {
			loc := d.Location()
			return &loc
		}
		break
	}
	return nil
}

// baseTarget returns the definition of the first base class that has one.
func baseTarget(c semantic.Cursor) *Location {
	for _, child := range c.Children() {
		if child.Kind() != semantic.KindBaseSpecifier {
			continue
		}
		if d := child.Definition(); d != nil {
			loc := d.Location()
			return &loc
		}
	}
	return nil
}

func overrideChoices(o []semantic.Cursor) []Choice {
	choices := make([]Choice, len(o))
	for i, c := range o {
		label := c.Spelling()
		if p := c.SemanticParent(); p != nil {
			label = p.Spelling() + "::" + label
		}
		choices[i] = Choice{Label: label, Location: c.Location()}
	}
	return choices
}

func isHeader(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h", ".hpp":
		return true
	}
	return false
}

// besideHeader probes the source files next to decl's header. Declarations
// outside headers have nothing beside them.
func (e *Engine) besideHeader(ctx context.Context, decl Location, current string) *Location {
	if !isHeader(decl.File) {
		return nil
	}
	return e.implementationBeside(ctx, decl, current)
}

// implementationBeside looks for the definition of the function declared at
// decl in the source files sharing the header's name, skipping current.
func (e *Engine) implementationBeside(ctx context.Context, decl Location, current string) *Location {
	stem := strings.TrimSuffix(decl.File, filepath.Ext(decl.File))
	for _, ext := range implementationExts {
		candidate := stem + "." + ext
		if candidate == current || !readable(candidate) {
			continue
		}
		entry, err := e.entry(ctx, candidate)
		if err != nil {
			e.logger.Debug("translation unit unavailable", "file", candidate, "error", err)
			continue
		}
		if loc := definitionIn(entry, decl); loc != nil {
			return loc
		}
	}
	return nil
}

// definitionIn resolves decl inside a locked unit and returns its definition
// when that is somewhere else.
func definitionIn(entry *tucache.Entry, decl Location) *Location {
	entry.Lock()
	defer entry.Unlock()
	c := entry.Unit().CursorAt(decl.File, decl.Line, decl.Column)
	if c == nil {
		return nil
	}
	d := c.Definition()
	if d == nil || d.Equal(c) {
		return nil
	}
	loc := d.Location()
	return &loc
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// conclude turns the cascade's decision into a Result.
func (e *Engine) conclude(ctx context.Context, origin Location, st step, failure string) (Result, error) {
	switch {
	case st.target != nil:
		return e.open(origin, *st.target)
	case len(st.choices) > 0:
		return Result{Choices: st.choices}, nil
	case st.search != nil:
		return e.extensiveSearch(ctx, origin, *st.search)
	}
	e.setStatus(failure)
	return Result{Message: failure}, nil
}
