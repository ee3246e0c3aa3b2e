// Package semantic defines the contract between cnav and a semantic-analysis
// provider: cursor kinds, source locations, cursors, and translation units.
//
// The navigation logic only ever talks to these interfaces. The tree-sitter
// backed implementation lives in internal/cparse.
package semantic

import (
	"context"
	"fmt"
)

// Kind classifies the entity a Cursor points at.
type Kind int

const (
	KindInvalid Kind = iota
	KindFunction
	KindMethod
	KindConstructor
	KindDestructor
	KindField
	KindVariable
	KindParameter
	KindClass
	KindStruct
	KindNamespace
	KindTypeRef
	KindBaseSpecifier
	KindDeclRef
	KindMemberRef
	KindCallExpr
	KindInclusionDirective
)

var kindNames = [...]string{
	KindInvalid:            "invalid",
	KindFunction:           "function",
	KindMethod:             "method",
	KindConstructor:        "constructor",
	KindDestructor:         "destructor",
	KindField:              "field",
	KindVariable:           "variable",
	KindParameter:          "parameter",
	KindClass:              "class",
	KindStruct:             "struct",
	KindNamespace:          "namespace",
	KindTypeRef:            "type-reference",
	KindBaseSpecifier:      "base-specifier",
	KindDeclRef:            "declaration-reference",
	KindMemberRef:          "member-reference",
	KindCallExpr:           "call-expression",
	KindInclusionDirective: "inclusion-directive",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsReference reports whether k is a use of another entity rather than a
// declaration of one.
func (k Kind) IsReference() bool {
	return k == KindDeclRef || k == KindMemberRef || k == KindCallExpr
}

// IsCallable reports whether k declares something with a body elsewhere.
func (k Kind) IsCallable() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindDestructor:
		return true
	}
	return false
}

// IsVariableDecl reports whether k declares a typed storage location.
func (k Kind) IsVariableDecl() bool {
	return k == KindVariable || k == KindParameter || k == KindField
}

// IsClassDecl reports whether k declares a class-like type.
func (k Kind) IsClassDecl() bool {
	return k == KindClass || k == KindStruct
}

// IsMember reports whether k can appear after "." or "->".
func (k Kind) IsMember() bool {
	switch k {
	case KindMethod, KindField, KindConstructor, KindDestructor:
		return true
	}
	return false
}

// Location is a 1-based source position.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String returns the encoded position "file:line:col", or the bare path when
// the location has no line.
func (l Location) String() string {
	if l.Line <= 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsZero reports whether l is the empty location.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

// Cursor is a handle to one entity inside a parsed Unit. Cursors are
// immutable snapshots and are only valid while the owning Unit is locked.
type Cursor interface {
	Kind() Kind
	Spelling() string
	Location() Location
	SemanticParent() Cursor

	// Definition returns the defining declaration of the entity, or nil.
	Definition() Cursor
	// Reference returns the declaration a reference denotes; a declaration
	// is its own reference.
	Reference() Cursor
	// CanonicalCursor returns the first declaration of the entity.
	CanonicalCursor() Cursor
	// Overridden returns the base-class methods this method overrides.
	Overridden() []Cursor
	Children() []Cursor
	// IncludedFile returns the resolved path of an inclusion directive.
	IncludedFile() string

	Equal(other Cursor) bool
}

// Severity orders diagnostics the way compilers do.
type Severity int

const (
	SeverityIgnored Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "Note"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityFatal:
		return "Fatal"
	}
	return "Ignored"
}

// Diagnostic is a problem reported while parsing a Unit.
type Diagnostic struct {
	Location Location
	Severity Severity
	Message  string
}

// Symbol is a named declaration visible in a Unit, used for completion.
type Symbol struct {
	Name     string
	Kind     Kind
	Parent   string
	Location Location
}

// Unit is a parsed translation unit: a main file plus every header it
// (transitively) includes.
type Unit interface {
	Path() string
	// Files lists the main file first, followed by the included files.
	Files() []string
	// CursorAt resolves the entity at a position in any file of the unit.
	// Returns nil when nothing nameable is there or file is not part of
	// the unit.
	CursorAt(file string, line, col int) Cursor
	Diagnostics() []Diagnostic
	Symbols() []Symbol
}

// Provider builds Units. A nil src means the file is read from disk.
type Provider interface {
	Parse(ctx context.Context, path string, src []byte, options []string) (Unit, error)
}

// SameLocation reports whether two cursors point at the same place. A nil
// cursor equals nothing.
func SameLocation(a, b Cursor) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Location() == b.Location()
}
