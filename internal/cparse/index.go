package cparse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cnav/internal/semantic"
)

// decl is one declaration of an entity. Several decls share a key when an
// entity is declared more than once (prototype + definition).
type decl struct {
	key   string // qualified name, e.g. "ns::Widget::draw"
	name  string
	kind  semantic.Kind
	isDef bool
	loc   semantic.Location
	start uint32 // byte offset of the name, for local visibility
	owner string // qualified name of the enclosing class

	// Variable-like declarations.
	typeName string
	typeLoc  semantic.Location

	bases []baseSpec

	// Parameters and function locals live in a scope, not in the global
	// tables.
	local bool
	scope scopeKey
}

type baseSpec struct {
	name string
	loc  semantic.Location
}

// scopeKey identifies a function body by file and byte range.
type scopeKey struct {
	file       string
	start, end uint32
}

func scopeOf(f *file, n *sitter.Node) scopeKey {
	return scopeKey{file: f.path, start: n.StartByte(), end: n.EndByte()}
}

// unit implements semantic.Unit.
type unit struct {
	path   string
	files  []*file // visit order, main file first
	order  []*file // index order, headers first
	byPath map[string]*file

	decls  []*decl
	byKey  map[string][]*decl
	byName map[string][]*decl
	locals map[scopeKey][]*decl
	fnDecl map[scopeKey]*decl

	diags []semantic.Diagnostic
}

func newUnit(path string) *unit {
	return &unit{
		path:   path,
		byPath: make(map[string]*file),
		byKey:  make(map[string][]*decl),
		byName: make(map[string][]*decl),
		locals: make(map[scopeKey][]*decl),
		fnDecl: make(map[scopeKey]*decl),
	}
}

func (u *unit) Path() string { return u.path }

func (u *unit) Files() []string {
	paths := make([]string, len(u.files))
	for i, f := range u.files {
		paths[i] = f.path
	}
	return paths
}

func (u *unit) Diagnostics() []semantic.Diagnostic { return u.diags }

func (u *unit) Symbols() []semantic.Symbol {
	syms := make([]semantic.Symbol, 0, len(u.decls))
	for _, d := range u.decls {
		if d.local {
			continue
		}
		syms = append(syms, semantic.Symbol{
			Name:     d.name,
			Kind:     d.kind,
			Parent:   d.owner,
			Location: d.loc,
		})
	}
	return syms
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

func lastSegment(qualified string) string {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}

// declCtx is the lexical context of the indexer walk.
type declCtx struct {
	scope string    // namespace/class qualification
	class string    // qualified class whose body we are directly in
	fn    *scopeKey // enclosing function body
}

type indexer struct {
	u *unit
	f *file
}

func (ix *indexer) add(d *decl, nameNode *sitter.Node) {
	d.loc = ix.f.loc(nameNode)
	d.start = nameNode.StartByte()
	ix.u.decls = append(ix.u.decls, d)
	ix.f.declAt[nameNode.StartPoint()] = d
	if d.local {
		ix.u.locals[d.scope] = append(ix.u.locals[d.scope], d)
		return
	}
	ix.u.byKey[d.key] = append(ix.u.byKey[d.key], d)
	ix.u.byName[d.name] = append(ix.u.byName[d.name], d)
}

func (ix *indexer) walk(n *sitter.Node, ctx declCtx) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "namespace_definition":
		ix.namespaceDefinition(n, ctx)
		return
	case "class_specifier", "struct_specifier":
		ix.classSpecifier(n, ctx)
		return
	case "function_definition":
		ix.functionDefinition(n, ctx)
		return
	case "declaration":
		ix.declaration(n, ctx, false)
		return
	case "field_declaration":
		ix.declaration(n, ctx, true)
		return
	case "preproc_include", "comment", "string_literal":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ix.walk(n.NamedChild(i), ctx)
	}
}

func (ix *indexer) namespaceDefinition(n *sitter.Node, ctx declCtx) {
	inner := ctx
	inner.class = ""
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name := ix.f.text(nameNode)
		key := qualify(ctx.scope, name)
		ix.add(&decl{key: key, name: name, kind: semantic.KindNamespace, isDef: true}, nameNode)
		inner.scope = key
	}
	ix.walk(n.ChildByFieldName("body"), inner)
}

func (ix *indexer) classSpecifier(n *sitter.Node, ctx declCtx) {
	kind := semantic.KindClass
	if n.Type() == "struct_specifier" {
		kind = semantic.KindStruct
	}
	body := n.ChildByFieldName("body")
	nameNode := n.ChildByFieldName("name")

	inner := ctx
	inner.fn = nil
	inner.class = ""
	if nameNode != nil {
		// "struct Foo x;" names a type, it does not declare one.
		if body == nil && !isForwardDeclaration(n) {
			return
		}
		name, scope, innermost := ix.splitName(nameNode, ctx.scope)
		key := qualify(scope, name)
		d := &decl{
			key:   key,
			name:  name,
			kind:  kind,
			isDef: body != nil,
			owner: ctx.class,
			bases: ix.bases(n),
		}
		ix.add(d, innermost)
		inner.scope = key
		inner.class = key
	}
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		ix.walk(body.NamedChild(i), inner)
	}
}

func isForwardDeclaration(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Type() {
	case "translation_unit", "declaration_list", "field_declaration_list", "template_declaration",
		"linkage_specification", "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
		return true
	case "declaration", "field_declaration":
		return p.ChildByFieldName("declarator") == nil
	}
	return false
}

func (ix *indexer) bases(n *sitter.Node) []baseSpec {
	var out []baseSpec
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "base_class_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			b := clause.NamedChild(j)
			switch b.Type() {
			case "type_identifier", "qualified_identifier", "template_type":
				name, loc := ix.typeInfo(b)
				out = append(out, baseSpec{name: name, loc: loc})
			}
		}
	}
	return out
}

func (ix *indexer) functionDefinition(n *sitter.Node, ctx declCtx) {
	body := n.ChildByFieldName("body")
	fd := findFunctionDeclarator(n.ChildByFieldName("declarator"))
	if fd == nil {
		ix.walk(body, ctx)
		return
	}
	sk := scopeOf(ix.f, n)
	d := ix.functionDecl(fd, ctx, true)
	if d != nil {
		ix.u.fnDecl[sk] = d
	}
	ix.params(fd, sk)

	inner := ctx
	inner.class = ""
	inner.fn = &sk
	ix.walk(body, inner)
}

// functionDecl registers the function named by a function_declarator.
func (ix *indexer) functionDecl(fd *sitter.Node, ctx declCtx, isDef bool) *decl {
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil
	}
	name, scope, innermost := ix.splitName(nameNode, ctx.scope)

	owner := ""
	switch {
	case scope != ctx.scope:
		if !ix.isNamespace(scope) {
			owner = scope
		}
	case ctx.class != "":
		owner = ctx.class
	}

	kind := semantic.KindFunction
	if owner != "" {
		switch {
		case innermost.Type() == "destructor_name":
			kind = semantic.KindDestructor
		case name == lastSegment(owner):
			kind = semantic.KindConstructor
		default:
			kind = semantic.KindMethod
		}
	}
	d := &decl{
		key:   qualify(scope, name),
		name:  name,
		kind:  kind,
		isDef: isDef,
		owner: owner,
	}
	ix.add(d, innermost)
	return d
}

func (ix *indexer) isNamespace(key string) bool {
	for _, d := range ix.u.byKey[key] {
		if d.kind == semantic.KindNamespace {
			return true
		}
	}
	return false
}

func (ix *indexer) params(fd *sitter.Node, sk scopeKey) {
	list := fd.ChildByFieldName("parameters")
	if list == nil {
		return
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter_declaration" && p.Type() != "optional_parameter_declaration" {
			continue
		}
		nameNode := declaratorName(p.ChildByFieldName("declarator"))
		if nameNode == nil {
			continue
		}
		typeName, typeLoc := ix.typeInfo(p.ChildByFieldName("type"))
		ix.add(&decl{
			name:     ix.f.text(nameNode),
			kind:     semantic.KindParameter,
			isDef:    true,
			typeName: typeName,
			typeLoc:  typeLoc,
			local:    true,
			scope:    sk,
		}, nameNode)
	}
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"qualified_identifier":     true,
	"destructor_name":          true,
	"operator_name":            true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

func (ix *indexer) declaration(n *sitter.Node, ctx declCtx, field bool) {
	typeNode := n.ChildByFieldName("type")
	if typeNode != nil {
		ix.walk(typeNode, ctx)
	}
	typeName, typeLoc := ix.typeInfo(typeNode)
	isExtern := hasStorageClass(ix.f, n, "extern")

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if typeNode != nil && c.StartByte() == typeNode.StartByte() {
			continue
		}
		if !declaratorTypes[c.Type()] {
			continue
		}
		if fd := findFunctionDeclarator(c); fd != nil {
			if ctx.fn == nil {
				ix.functionDecl(fd, ctx, false)
			}
			continue
		}
		nameNode := declaratorName(c)
		if nameNode == nil {
			continue
		}
		name, scope, innermost := ix.splitName(nameNode, ctx.scope)
		d := &decl{
			name:     name,
			isDef:    true,
			typeName: typeName,
			typeLoc:  typeLoc,
		}
		switch {
		case field || ctx.class != "":
			d.kind = semantic.KindField
			d.key = qualify(scope, name)
			d.owner = ctx.class
		case ctx.fn != nil:
			d.kind = semantic.KindVariable
			d.local = true
			d.scope = *ctx.fn
		default:
			d.kind = semantic.KindVariable
			d.key = qualify(scope, name)
			d.isDef = !isExtern
		}
		ix.add(d, innermost)
	}
}

func hasStorageClass(f *file, n *sitter.Node, class string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "storage_class_specifier" && f.text(c) == class {
			return true
		}
	}
	return false
}

// splitName unwraps qualified identifiers. It returns the simple name, the
// fully qualified scope it is declared in, and the innermost name node.
func (ix *indexer) splitName(n *sitter.Node, scope string) (string, string, *sitter.Node) {
	for n.Type() == "qualified_identifier" {
		if s := n.ChildByFieldName("scope"); s != nil {
			scope = qualify(scope, ix.scopeText(s))
		}
		next := n.ChildByFieldName("name")
		if next == nil {
			break
		}
		n = next
	}
	if n.Type() == "template_function" || n.Type() == "template_type" {
		if name := n.ChildByFieldName("name"); name != nil {
			n = name
		}
	}
	return ix.f.text(n), scope, n
}

func (ix *indexer) scopeText(s *sitter.Node) string {
	if s.Type() == "template_type" {
		if name := s.ChildByFieldName("name"); name != nil {
			return ix.f.text(name)
		}
	}
	return ix.f.text(s)
}

// typeInfo returns the spelled type name of a type node and the location
// of its name, or a zero location for builtin types.
func (ix *indexer) typeInfo(n *sitter.Node) (string, semantic.Location) {
	if n == nil {
		return "", semantic.Location{}
	}
	switch n.Type() {
	case "type_identifier":
		return ix.f.text(n), ix.f.loc(n)
	case "qualified_identifier":
		name, scope, innermost := ix.splitName(n, "")
		return qualify(scope, name), ix.f.loc(innermost)
	case "template_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return ix.f.text(name), ix.f.loc(name)
		}
	case "struct_specifier", "class_specifier":
		if name := n.ChildByFieldName("name"); name != nil {
			return ix.typeInfo(name)
		}
	}
	return ix.f.text(n), semantic.Location{}
}

// findFunctionDeclarator descends through declarator wrappers looking for a
// function_declarator.
func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator", "init_declarator",
			"parenthesized_declarator", "attributed_declarator", "array_declarator":
			n = innerDeclarator(n)
		default:
			return nil
		}
	}
	return nil
}

// declaratorName descends through declarator wrappers to the declared name.
func declaratorName(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "type_identifier":
			return n
		case "pointer_declarator", "reference_declarator", "init_declarator", "function_declarator",
			"parenthesized_declarator", "attributed_declarator", "array_declarator":
			n = innerDeclarator(n)
		default:
			return nil
		}
	}
	return nil
}

func innerDeclarator(n *sitter.Node) *sitter.Node {
	if d := n.ChildByFieldName("declarator"); d != nil {
		return d
	}
	if count := int(n.NamedChildCount()); count > 0 {
		return n.NamedChild(count - 1)
	}
	return nil
}
