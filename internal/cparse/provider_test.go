package cparse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cnav/internal/semantic"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parse(t *testing.T, path string, options ...string) semantic.Unit {
	t.Helper()
	u, err := NewProvider().Parse(context.Background(), path, nil, options)
	require.NoError(t, err)
	return u
}

const headerSrc = `#pragma once
void foo(int x);
inline void caller() { foo(1); }
`

const implSrc = `#include "a.h"

void foo(int x) {
}
`

func TestParse_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hello")
	_, err := NewProvider().Parse(context.Background(), path, nil, nil)
	require.Error(t, err)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := NewProvider().Parse(context.Background(), filepath.Join(t.TempDir(), "gone.c"), nil, nil)
	require.Error(t, err)
}

func TestParse_FollowsQuotedIncludes(t *testing.T) {
	dir := t.TempDir()
	h := writeFile(t, dir, "a.h", headerSrc)
	cpp := writeFile(t, dir, "a.cpp", implSrc)

	u := parse(t, cpp)
	assert.Equal(t, cpp, u.Path())
	assert.Equal(t, []string{cpp, h}, u.Files())
}

func TestParse_AngleIncludesUseIncludeDirs(t *testing.T) {
	dir := t.TempDir()
	lib := writeFile(t, dir, "include/lib.h", "int lib_value;\n")
	main := writeFile(t, dir, "src/main.c", "#include <lib.h>\nint main() { return lib_value; }\n")

	u := parse(t, main)
	assert.Equal(t, []string{main}, u.Files())

	u = parse(t, main, "-I", filepath.Join(dir, "include"))
	assert.Equal(t, []string{main, lib}, u.Files())
}

func TestIncludeDirs(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		want    []string
	}{
		{"joined", []string{"-Ifoo", "-DX=1"}, []string{"foo"}},
		{"separated", []string{"-I", "bar"}, []string{"bar"}},
		{"iquote and isystem", []string{"-iquote", "q", "-isystem/usr/inc"}, []string{"q", "/usr/inc"}},
		{"none", []string{"-Wall", "-std=c++17"}, nil},
		{"dangling", []string{"-I"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IncludeDirs(tt.options))
		})
	}
}

func TestCursorAt_PrototypeDefinitionInOtherFile(t *testing.T) {
	dir := t.TempDir()
	h := writeFile(t, dir, "a.h", headerSrc)
	cpp := writeFile(t, dir, "a.cpp", implSrc)

	u := parse(t, cpp)

	// The prototype, seen through a.cpp's unit.
	proto := u.CursorAt(h, 2, 6)
	require.NotNil(t, proto)
	assert.Equal(t, semantic.KindFunction, proto.Kind())
	assert.Equal(t, "foo", proto.Spelling())

	def := proto.Definition()
	require.NotNil(t, def)
	assert.Equal(t, semantic.Location{File: cpp, Line: 3, Column: 6}, def.Location())
	assert.False(t, def.Equal(proto))

	// The definition is its own definition; its canonical form is the prototype.
	atDef := u.CursorAt(cpp, 3, 6)
	require.NotNil(t, atDef)
	assert.True(t, atDef.Definition().Equal(atDef))
	assert.True(t, atDef.Reference().Equal(atDef))
	assert.Equal(t, semantic.Location{File: h, Line: 2, Column: 6}, atDef.CanonicalCursor().Location())
}

func TestCursorAt_CallInHeaderWithoutDefinition(t *testing.T) {
	dir := t.TempDir()
	h := writeFile(t, dir, "a.h", headerSrc)

	u := parse(t, h)
	call := u.CursorAt(h, 3, 24)
	require.NotNil(t, call)
	assert.Equal(t, semantic.KindCallExpr, call.Kind())
	assert.Equal(t, "foo", call.Spelling())
	assert.Nil(t, call.Definition())

	ref := call.Reference()
	require.NotNil(t, ref)
	assert.Equal(t, semantic.KindFunction, ref.Kind())
	assert.Equal(t, semantic.Location{File: h, Line: 2, Column: 6}, ref.Location())
}

const classSrc = `class Base {
public:
    virtual void draw();
};

class Widget : public Base {
public:
    void draw();
    int size;
};

void Widget::draw() {
    size = 1;
}
`

func TestCursorAt_Classes(t *testing.T) {
	path := writeFile(t, t.TempDir(), "widget.cpp", classSrc)
	u := parse(t, path)

	t.Run("out-of-line method", func(t *testing.T) {
		c := u.CursorAt(path, 12, 14)
		require.NotNil(t, c)
		assert.Equal(t, semantic.KindMethod, c.Kind())
		assert.Equal(t, semantic.Location{File: path, Line: 8, Column: 10}, c.CanonicalCursor().Location())

		parent := c.SemanticParent()
		require.NotNil(t, parent)
		assert.Equal(t, "Widget", parent.Spelling())

		o := c.Overridden()
		require.Len(t, o, 1)
		assert.Equal(t, semantic.Location{File: path, Line: 3, Column: 18}, o[0].Location())
	})

	t.Run("member used inside method", func(t *testing.T) {
		c := u.CursorAt(path, 13, 5)
		require.NotNil(t, c)
		assert.Equal(t, semantic.KindDeclRef, c.Kind())
		def := c.Definition()
		require.NotNil(t, def)
		assert.Equal(t, semantic.KindField, def.Kind())
		assert.Equal(t, semantic.Location{File: path, Line: 9, Column: 9}, def.Location())
	})

	t.Run("base specifier", func(t *testing.T) {
		c := u.CursorAt(path, 6, 7)
		require.NotNil(t, c)
		assert.Equal(t, semantic.KindClass, c.Kind())
		children := c.Children()
		require.Len(t, children, 1)
		assert.Equal(t, semantic.KindBaseSpecifier, children[0].Kind())
		def := children[0].Definition()
		require.NotNil(t, def)
		assert.Equal(t, semantic.Location{File: path, Line: 1, Column: 7}, def.Location())
	})

	t.Run("builtin-typed field has no children", func(t *testing.T) {
		c := u.CursorAt(path, 9, 9)
		require.NotNil(t, c)
		assert.Equal(t, semantic.KindField, c.Kind())
		assert.Empty(t, c.Children())
		assert.True(t, c.Definition().Equal(c))
	})
}

const pointSrc = `struct Point { int x; };
int get(Point p) { return p.x; }
`

func TestCursorAt_MemberAccessUsesDeclaredType(t *testing.T) {
	path := writeFile(t, t.TempDir(), "point.cpp", pointSrc)
	u := parse(t, path)

	c := u.CursorAt(path, 2, 29)
	require.NotNil(t, c)
	assert.Equal(t, semantic.KindMemberRef, c.Kind())
	def := c.Definition()
	require.NotNil(t, def)
	assert.Equal(t, semantic.Location{File: path, Line: 1, Column: 20}, def.Location())

	param := u.CursorAt(path, 2, 15)
	require.NotNil(t, param)
	assert.Equal(t, semantic.KindParameter, param.Kind())
	children := param.Children()
	require.Len(t, children, 1)
	assert.Equal(t, semantic.KindTypeRef, children[0].Kind())
	typeDef := children[0].Definition()
	require.NotNil(t, typeDef)
	assert.Equal(t, semantic.Location{File: path, Line: 1, Column: 8}, typeDef.Location())
}

func TestCursorAt_InclusionDirective(t *testing.T) {
	dir := t.TempDir()
	h := writeFile(t, dir, "a.h", headerSrc)
	cpp := writeFile(t, dir, "a.cpp", implSrc)

	c := parse(t, cpp).CursorAt(cpp, 1, 12)
	require.NotNil(t, c)
	assert.Equal(t, semantic.KindInclusionDirective, c.Kind())
	assert.Equal(t, h, c.IncludedFile())
}

func TestCursorAt_OutsideUnit(t *testing.T) {
	path := writeFile(t, t.TempDir(), "point.cpp", pointSrc)
	u := parse(t, path)
	assert.Nil(t, u.CursorAt("/elsewhere.cpp", 1, 1))
	assert.Nil(t, u.CursorAt(path, 0, 1))
}

func TestDiagnostics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.c", "#include \"missing.h\"\nint x = ;\n")
	u := parse(t, path)

	var fatal, errs int
	for _, d := range u.Diagnostics() {
		switch d.Severity {
		case semantic.SeverityFatal:
			fatal++
			assert.Equal(t, "'missing.h' file not found", d.Message)
			assert.Equal(t, 1, d.Location.Line)
		case semantic.SeverityError:
			errs++
		}
	}
	assert.Equal(t, 1, fatal)
	assert.Positive(t, errs)
}

func TestSymbols_ExcludeLocals(t *testing.T) {
	path := writeFile(t, t.TempDir(), "point.cpp", pointSrc)
	u := parse(t, path)

	names := map[string]semantic.Kind{}
	for _, s := range u.Symbols() {
		names[s.Name] = s.Kind
	}
	assert.Equal(t, semantic.KindStruct, names["Point"])
	assert.Equal(t, semantic.KindField, names["x"])
	assert.Equal(t, semantic.KindFunction, names["get"])
	assert.NotContains(t, names, "p")
}

func TestLanguageForFile(t *testing.T) {
	for path, want := range map[string]string{
		"a.c": "c", "a.m": "c", "a.h": "cpp", "a.cpp": "cpp", "a.mm": "cpp", "A.HPP": "cpp",
	} {
		got, ok := LanguageForFile(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	assert.False(t, IsSupported("a.go"))
}
