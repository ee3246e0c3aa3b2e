package cnav

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordAt(t *testing.T) {
	src := []byte("int count = 0;\n  foo(bar);\n")
	tests := []struct {
		line, col int
		want      string
	}{
		{1, 5, "count"},
		{1, 7, "count"},
		{1, 10, "count"}, // just past the end
		{1, 12, ""},
		{2, 3, "foo"},
		{2, 7, "bar"},
		{2, 100, ""},
		{5, 1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wordAt(src, tt.line, tt.col), "%d:%d", tt.line, tt.col)
	}
}

func TestLineText_CRLF(t *testing.T) {
	text, offset := lineText([]byte("a;\r\nb;\r\n"), 2)
	assert.Equal(t, "b;", text)
	assert.Equal(t, 4, offset)
}

func TestPreviousDeclaration(t *testing.T) {
	src := []byte("int main() {\n    int count = 0;\n    const Widget *w = make();\n    count++;\n    w->draw();\n}\n")

	t.Run("plain type", func(t *testing.T) {
		loc := previousDeclaration(src, "/m.cpp", bytes.LastIndex(src, []byte("count++")), "count")
		require.NotNil(t, loc)
		assert.Equal(t, Location{File: "/m.cpp", Line: 2, Column: 9}, *loc)
	})

	t.Run("qualified pointer", func(t *testing.T) {
		loc := previousDeclaration(src, "/m.cpp", bytes.LastIndex(src, []byte("w->")), "w")
		require.NotNil(t, loc)
		assert.Equal(t, Location{File: "/m.cpp", Line: 3, Column: 19}, *loc)
	})

	t.Run("only before offset", func(t *testing.T) {
		assert.Nil(t, previousDeclaration(src, "/m.cpp", bytes.Index(src, []byte("int count")), "count"))
	})

	t.Run("keywords are not types", func(t *testing.T) {
		src := []byte("int f() {\n    return count;\n}\n")
		assert.Nil(t, previousDeclaration(src, "/f.cpp", len(src), "count"))
	})
}

func TestUsedAsType(t *testing.T) {
	assert.True(t, usedAsType(" *g = 0;"))
	assert.True(t, usedAsType(" w;"))
	assert.True(t, usedAsType("& r)"))
	assert.False(t, usedAsType("++;"))
	assert.False(t, usedAsType(".draw();"))
	assert.False(t, usedAsType(" = 3;"))
}

func TestPosition(t *testing.T) {
	src := []byte("ab\ncd\n")
	line, col := position(src, 0)
	assert.Equal(t, []int{1, 1}, []int{line, col})
	line, col = position(src, 4)
	assert.Equal(t, []int{2, 2}, []int{line, col})
}
