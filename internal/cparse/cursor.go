package cparse

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cnav/internal/semantic"
)

// group partitions kinds that can share a qualified name without being the
// same entity (a class Foo and its constructor Foo::Foo, say).
type group int

const (
	groupAny group = iota
	groupCallable
	groupClass
	groupVar
	groupNamespace
)

func groupOf(k semantic.Kind) group {
	switch {
	case k.IsCallable():
		return groupCallable
	case k.IsClassDecl():
		return groupClass
	case k.IsVariableDecl():
		return groupVar
	case k == semantic.KindNamespace:
		return groupNamespace
	}
	return groupAny
}

func (g group) accepts(k semantic.Kind) bool {
	return g == groupAny || g == groupOf(k)
}

// cursor implements semantic.Cursor.
type cursor struct {
	u        *unit
	kind     semantic.Kind
	spelling string
	loc      semantic.Location
	entity   *decl // the declaration this cursor is, or refers to
	included string
}

func (u *unit) declCursor(d *decl) *cursor {
	if d == nil {
		return nil
	}
	return &cursor{u: u, kind: d.kind, spelling: d.name, loc: d.loc, entity: d}
}

// asCursor keeps a nil *cursor from becoming a non-nil interface.
func asCursor(c *cursor) semantic.Cursor {
	if c == nil {
		return nil
	}
	return c
}

func (c *cursor) isDecl() bool {
	return c.entity != nil && c.entity.kind == c.kind && c.entity.loc == c.loc
}

func (c *cursor) Kind() semantic.Kind         { return c.kind }
func (c *cursor) Spelling() string            { return c.spelling }
func (c *cursor) Location() semantic.Location { return c.loc }
func (c *cursor) IncludedFile() string        { return c.included }

func (c *cursor) Equal(other semantic.Cursor) bool {
	if other == nil {
		return false
	}
	return c.kind == other.Kind() && c.loc == other.Location()
}

func (c *cursor) SemanticParent() semantic.Cursor {
	if c.entity == nil || c.entity.owner == "" {
		return nil
	}
	return asCursor(c.u.declCursor(c.u.first(c.entity.owner, groupClass)))
}

func (c *cursor) Definition() semantic.Cursor {
	if c.entity == nil {
		return nil
	}
	return asCursor(c.u.declCursor(c.u.definitionOf(c.entity)))
}

func (c *cursor) Reference() semantic.Cursor {
	if c.entity == nil {
		return nil
	}
	if c.isDecl() {
		return c
	}
	return asCursor(c.u.declCursor(c.u.canonicalOf(c.entity)))
}

func (c *cursor) CanonicalCursor() semantic.Cursor {
	if c.entity == nil {
		return nil
	}
	return asCursor(c.u.declCursor(c.u.canonicalOf(c.entity)))
}

func (c *cursor) Overridden() []semantic.Cursor {
	if c.entity == nil || !c.entity.kind.IsCallable() || c.entity.owner == "" {
		return nil
	}
	var out []semantic.Cursor
	seen := map[string]bool{c.entity.owner: true}
	for _, base := range c.u.basesOf(c.entity.owner) {
		for _, d := range c.u.overriddenIn(base, c.entity.name, seen) {
			out = append(out, c.u.declCursor(d))
		}
	}
	return out
}

func (c *cursor) Children() []semantic.Cursor {
	if !c.isDecl() {
		return nil
	}
	d := c.entity
	var out []semantic.Cursor
	switch {
	case d.kind.IsVariableDecl():
		if d.typeLoc.Line > 0 {
			out = append(out, &cursor{
				u:        c.u,
				kind:     semantic.KindTypeRef,
				spelling: d.typeName,
				loc:      d.typeLoc,
				entity:   c.u.lookupType(d.typeName, d.owner),
			})
		}
	case d.kind.IsClassDecl():
		for _, b := range d.bases {
			out = append(out, &cursor{
				u:        c.u,
				kind:     semantic.KindBaseSpecifier,
				spelling: b.name,
				loc:      b.loc,
				entity:   c.u.lookupType(b.name, d.owner),
			})
		}
	}
	return out
}

// first returns the first declaration of key in group g.
func (u *unit) first(key string, g group) *decl {
	for _, d := range u.byKey[key] {
		if g.accepts(d.kind) {
			return d
		}
	}
	return nil
}

func (u *unit) canonicalOf(d *decl) *decl {
	if d == nil || d.local {
		return d
	}
	if c := u.first(d.key, groupOf(d.kind)); c != nil {
		return c
	}
	return d
}

// definitionOf returns the defining declaration of d's entity. A definition
// spelled under a different qualification (through a using-directive) is
// found by suffix.
func (u *unit) definitionOf(d *decl) *decl {
	if d == nil {
		return nil
	}
	if d.local {
		return d
	}
	g := groupOf(d.kind)
	for _, e := range u.byKey[d.key] {
		if e.isDef && g.accepts(e.kind) {
			return e
		}
	}
	for _, e := range u.byName[d.name] {
		if !e.isDef || !g.accepts(e.kind) {
			continue
		}
		if strings.HasSuffix(e.key, "::"+d.key) || strings.HasSuffix(d.key, "::"+e.key) {
			return e
		}
	}
	return nil
}

// basesOf returns the class declarations that class key derives from.
func (u *unit) basesOf(key string) []*decl {
	var out []*decl
	for _, d := range u.byKey[key] {
		if !d.kind.IsClassDecl() {
			continue
		}
		for _, b := range d.bases {
			if base := u.lookupType(b.name, d.owner); base != nil {
				out = append(out, base)
			}
		}
		if len(d.bases) > 0 {
			break
		}
	}
	return out
}

// overriddenIn finds methods called name in base, or in its own bases when
// base does not declare one.
func (u *unit) overriddenIn(base *decl, name string, seen map[string]bool) []*decl {
	if seen[base.key] {
		return nil
	}
	seen[base.key] = true
	if m := u.first(qualify(base.key, name), groupCallable); m != nil {
		return []*decl{m}
	}
	var out []*decl
	for _, b := range u.basesOf(base.key) {
		out = append(out, u.overriddenIn(b, name, seen)...)
	}
	return out
}

// lookupType resolves a spelled type name from scope outward.
func (u *unit) lookupType(name, scope string) *decl {
	if name == "" {
		return nil
	}
	for s := scope; ; s = parentScope(s) {
		if d := u.first(qualify(s, name), groupClass); d != nil {
			return d
		}
		if s == "" {
			break
		}
	}
	return u.byNameIn(lastSegment(name), groupClass, name)
}

func parentScope(s string) string {
	if i := strings.LastIndex(s, "::"); i >= 0 {
		return s[:i]
	}
	return ""
}

// byNameIn returns the first declaration called name in group g whose key
// ends with qualified.
func (u *unit) byNameIn(name string, g group, qualified string) *decl {
	for _, d := range u.byName[name] {
		if !g.accepts(d.kind) {
			continue
		}
		if d.key == qualified || strings.HasSuffix(d.key, "::"+qualified) {
			return d
		}
	}
	return nil
}

// CursorAt implements semantic.Unit.
func (u *unit) CursorAt(path string, line, col int) semantic.Cursor {
	f := u.byPath[filepath.Clean(path)]
	if f == nil || line < 1 || col < 1 {
		return nil
	}
	pt := sitter.Point{Row: uint32(line - 1), Column: uint32(col - 1)}
	n := f.root.NamedDescendantForPointRange(pt, pt)
	if n == nil {
		return nil
	}
	return asCursor(u.cursorFor(f, n))
}

func (u *unit) cursorFor(f *file, n *sitter.Node) *cursor {
	for p := n; p != nil; p = p.Parent() {
		if p.Type() == "preproc_include" {
			return u.inclusionCursor(f, p)
		}
	}
	if n.Type() == "identifier" {
		if p := n.Parent(); p != nil && p.Type() == "destructor_name" {
			n = p
		}
	}
	if d := f.declAt[n.StartPoint()]; d != nil {
		return u.declCursor(d)
	}

	name := f.text(n)
	loc := f.loc(n)
	switch n.Type() {
	case "type_identifier":
		return &cursor{u: u, kind: semantic.KindTypeRef, spelling: name, loc: loc,
			entity: u.resolve(f, n, name, groupClass)}
	case "namespace_identifier":
		return &cursor{u: u, kind: semantic.KindDeclRef, spelling: name, loc: loc,
			entity: u.resolve(f, n, name, groupNamespace)}
	case "field_identifier":
		return &cursor{u: u, kind: semantic.KindMemberRef, spelling: name, loc: loc,
			entity: u.resolveMember(f, n, name)}
	case "identifier", "destructor_name":
		kind, g := semantic.KindDeclRef, groupAny
		if isCallee(n) {
			kind, g = semantic.KindCallExpr, groupCallable
		}
		return &cursor{u: u, kind: kind, spelling: name, loc: loc,
			entity: u.resolve(f, n, name, g)}
	}
	return nil
}

func (u *unit) inclusionCursor(f *file, n *sitter.Node) *cursor {
	for _, inc := range f.includes {
		if inc.start == n.StartByte() {
			return &cursor{u: u, kind: semantic.KindInclusionDirective, spelling: inc.name,
				loc: inc.loc, included: inc.resolved}
		}
	}
	return nil
}

// isCallee reports whether n names the function of a call expression,
// possibly through a qualified name.
func isCallee(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "qualified_identifier", "template_function":
			n = p
			continue
		case "call_expression":
			fn := p.ChildByFieldName("function")
			return fn != nil && sameNode(fn, n)
		}
		return false
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// qualifierOf returns the explicit scope a name was written with, "ns::C"
// for ns::C::name, or "" when unqualified.
func qualifierOf(f *file, n *sitter.Node) string {
	var parts []string
	for p := n.Parent(); p != nil && p.Type() == "qualified_identifier"; p = p.Parent() {
		name := p.ChildByFieldName("name")
		if name == nil || !containsNode(name, n) {
			break
		}
		if s := p.ChildByFieldName("scope"); s != nil {
			seg := f.text(s)
			if s.Type() == "template_type" {
				if tn := s.ChildByFieldName("name"); tn != nil {
					seg = f.text(tn)
				}
			}
			parts = append([]string{seg}, parts...)
		}
	}
	return strings.Join(parts, "::")
}

func containsNode(outer, inner *sitter.Node) bool {
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// resolve finds the declaration a name at n refers to: explicit
// qualification first, then the enclosing function's parameters and earlier
// locals, then members of the enclosing class and its bases, then anything
// in the unit with that name.
func (u *unit) resolve(f *file, n *sitter.Node, name string, g group) *decl {
	if q := qualifierOf(f, n); q != "" {
		if d := u.byNameIn(name, g, qualify(q, name)); d != nil {
			return d
		}
	}
	for fn := enclosingFunction(n); fn != nil; fn = enclosingFunction(fn) {
		sk := scopeOf(f, fn)
		if g == groupAny || g == groupVar {
			if d := u.local(sk, name, n.StartByte()); d != nil {
				return d
			}
		}
		if owner := u.fnDecl[sk]; owner != nil && owner.owner != "" {
			if d := u.member(owner.owner, name, g, map[string]bool{}); d != nil {
				return d
			}
		}
	}
	return u.anyNamed(name, g)
}

func enclosingFunction(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "function_definition" {
			return p
		}
	}
	return nil
}

// local returns the last parameter or local called name declared before
// offset in function scope sk.
func (u *unit) local(sk scopeKey, name string, offset uint32) *decl {
	var found *decl
	for _, d := range u.locals[sk] {
		if d.name != name {
			continue
		}
		if d.kind == semantic.KindParameter || d.start <= offset {
			found = d
		}
	}
	return found
}

func (u *unit) member(class, name string, g group, seen map[string]bool) *decl {
	if seen[class] {
		return nil
	}
	seen[class] = true
	if d := u.first(qualify(class, name), g); d != nil {
		return d
	}
	for _, b := range u.basesOf(class) {
		if d := u.member(b.key, name, g, seen); d != nil {
			return d
		}
	}
	return nil
}

func (u *unit) anyNamed(name string, g group) *decl {
	for _, d := range u.byName[name] {
		if g.accepts(d.kind) {
			return d
		}
	}
	if g != groupAny {
		return u.anyNamed(name, groupAny)
	}
	return nil
}

// resolveMember resolves the field in obj.m, p->m or a constructor's
// member initializer list.
func (u *unit) resolveMember(f *file, n *sitter.Node, name string) *decl {
	p := n.Parent()
	if p == nil {
		return nil
	}
	var class string
	switch p.Type() {
	case "field_expression":
		class = u.typeOfExpr(f, p.ChildByFieldName("argument"))
	case "field_initializer":
		if fn := enclosingFunction(n); fn != nil {
			if d := u.fnDecl[scopeOf(f, fn)]; d != nil {
				class = d.owner
			}
		}
	}
	if class != "" {
		if d := u.member(class, name, groupAny, map[string]bool{}); d != nil {
			return d
		}
	}
	for _, d := range u.byName[name] {
		if d.kind.IsMember() {
			return d
		}
	}
	return nil
}

// typeOfExpr returns the qualified class of a simple object expression:
// this, or an identifier whose declaration has a known class type.
func (u *unit) typeOfExpr(f *file, arg *sitter.Node) string {
	if arg == nil {
		return ""
	}
	switch arg.Type() {
	case "this":
		if fn := enclosingFunction(arg); fn != nil {
			if d := u.fnDecl[scopeOf(f, fn)]; d != nil {
				return d.owner
			}
		}
	case "identifier", "field_expression":
		var d *decl
		if arg.Type() == "identifier" {
			d = u.resolve(f, arg, f.text(arg), groupVar)
		} else if field := arg.ChildByFieldName("field"); field != nil {
			d = u.resolveMember(f, field, f.text(field))
		}
		if d != nil && d.typeName != "" {
			if t := u.lookupType(d.typeName, d.owner); t != nil {
				return t.key
			}
		}
	case "parenthesized_expression", "pointer_expression":
		if arg.NamedChildCount() > 0 {
			return u.typeOfExpr(f, arg.NamedChild(int(arg.NamedChildCount())-1))
		}
	}
	return ""
}
