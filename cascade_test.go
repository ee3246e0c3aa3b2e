package cnav

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cnav/internal/search"
)

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

const pointSrc = `struct Point { int x; };
int get(Point p) { return p.x; }
`

const diamondSrc = `class A {
public:
    virtual void draw();
};
class B {
public:
    virtual void draw();
};
class C : public A, public B {
public:
    void draw();
};
`

const callerSrc = `int main() {
    bar(1);
    return 0;
}
`

func gotoDefinition(t *testing.T, e *Engine, file string, line, col int) Result {
	t.Helper()
	res, err := e.GotoDefinition(context.Background(), file, line, col)
	require.NoError(t, err)
	return res
}

func gotoImplementation(t *testing.T, e *Engine, file string, line, col int) Result {
	t.Helper()
	res, err := e.GotoImplementation(context.Background(), file, line, col)
	require.NoError(t, err)
	return res
}

func TestGotoDefinition_Semantic(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.h":        headerSrc,
		"a.cpp":      implSrc,
		"widget.cpp": classSrc,
		"point.cpp":  pointSrc,
	})
	h := filepath.Join(dir, "a.h")
	cpp := filepath.Join(dir, "a.cpp")
	widget := filepath.Join(dir, "widget.cpp")
	point := filepath.Join(dir, "point.cpp")

	tests := []struct {
		name      string
		file      string
		line, col int
		want      Location
	}{
		{"definition goes to first declaration", cpp, 3, 6, Location{File: h, Line: 2, Column: 6}},
		{"reference goes to declaration", widget, 13, 5, Location{File: widget, Line: 9, Column: 9}},
		{"method goes to overridden method", widget, 8, 10, Location{File: widget, Line: 3, Column: 18}},
		{"class goes to base", widget, 6, 7, Location{File: widget, Line: 1, Column: 7}},
		{"variable goes to its type", point, 2, 15, Location{File: point, Line: 1, Column: 8}},
		{"include opens the file", cpp, 1, 12, Location{File: h}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newTestEngine(t, dir)
			res := gotoDefinition(t, e, tt.file, tt.line, tt.col)
			require.NotNil(t, res.Target, res.Message)
			assert.Equal(t, tt.want, *res.Target)
			assert.Equal(t, tt.want, rec.lastOpened())
			assert.NoError(t, res.Err())

			history := e.History()
			require.Len(t, history, 1)
			assert.Equal(t, Location{File: tt.file, Line: tt.line, Column: tt.col}, history[0].Origin)
		})
	}
}

func TestGotoDefinition_SeveralOverridesBecomeChoices(t *testing.T) {
	dir := writeTree(t, map[string]string{"diamond.cpp": diamondSrc})
	e, rec := newTestEngine(t, dir)
	file := filepath.Join(dir, "diamond.cpp")

	res := gotoDefinition(t, e, file, 11, 10)
	require.Nil(t, res.Target)
	require.Len(t, res.Choices, 2)
	labels := []string{res.Choices[0].Label, res.Choices[1].Label}
	assert.ElementsMatch(t, []string{"A::draw", "B::draw"}, labels)
	assert.ErrorIs(t, res.Err(), ErrAmbiguous)
	assert.Empty(t, e.History())
	assert.Empty(t, rec.opened)

	origin := Location{File: file, Line: 11, Column: 10}
	chosen, err := e.Choose(origin, res.Choices[0])
	require.NoError(t, err)
	require.NotNil(t, chosen.Target)
	assert.Equal(t, res.Choices[0].Location, *chosen.Target)
	assert.Equal(t, []NavigationEntry{{Origin: origin, Target: res.Choices[0].Location}}, e.History())
}

func TestGotoDefinition_NothingThereIsIdempotent(t *testing.T) {
	dir := writeTree(t, map[string]string{"blank.cpp": "int x;\n\nint y;\n"})
	e, rec := newTestEngine(t, dir)
	file := filepath.Join(dir, "blank.cpp")

	for i := 0; i < 2; i++ {
		res := gotoDefinition(t, e, file, 2, 1)
		assert.Nil(t, res.Target)
		assert.Empty(t, res.Choices)
		assert.Equal(t, "No parent to go to!", res.Message)
		assert.ErrorIs(t, res.Err(), ErrUnresolvable)
	}
	assert.Empty(t, e.History())
	assert.Equal(t, []string{"No parent to go to!", "No parent to go to!"}, rec.status)
}

func TestGotoDefinition_UnresolvedCallSearchesDeclarations(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.cpp":         callerSrc,
		"objc/bar.h":       "void bar(int x);\n",
		"objc/bar_impl.mm": "void bar(int x) {\n}\n",
	})
	e, _ := newTestEngine(t, dir)

	res := gotoDefinition(t, e, filepath.Join(dir, "main.cpp"), 2, 5)
	require.Len(t, res.Choices, 1)
	assert.Equal(t, "void bar(int x)", res.Choices[0].Label)
	assert.Equal(t, Location{File: filepath.Join(dir, "objc/bar.h"), Line: 1, Column: 1}, res.Choices[0].Location)
	assert.Empty(t, e.History())
}

func TestGotoDefinition_UnknownTypeSearchesClasses(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.cpp": "void f() {\n    Gadget *g = 0;\n}\n",
		"gadget.h": "class Gadget {\n};\n",
	})
	e, _ := newTestEngine(t, dir)

	res := gotoDefinition(t, e, filepath.Join(dir, "main.cpp"), 2, 5)
	require.Len(t, res.Choices, 1)
	assert.Equal(t, filepath.Join(dir, "gadget.h"), res.Choices[0].Location.File)
}

func TestGotoImplementation_HeaderToSourceBeside(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.h": headerSrc, "a.cpp": implSrc})
	h := filepath.Join(dir, "a.h")
	want := Location{File: filepath.Join(dir, "a.cpp"), Line: 3, Column: 6}

	t.Run("from a call", func(t *testing.T) {
		e, rec := newTestEngine(t, dir)
		res := gotoImplementation(t, e, h, 3, 24)
		require.NotNil(t, res.Target, res.Message)
		assert.Equal(t, want, *res.Target)
		assert.Equal(t, want, rec.lastOpened())
	})

	t.Run("from the prototype", func(t *testing.T) {
		e, _ := newTestEngine(t, dir)
		res := gotoImplementation(t, e, h, 2, 6)
		require.NotNil(t, res.Target, res.Message)
		assert.Equal(t, want, *res.Target)
	})
}

func TestGotoImplementation_AlreadyAtDefinition(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.h": headerSrc, "a.cpp": implSrc})
	e, _ := newTestEngine(t, dir)

	// A definition is its own implementation.
	res := gotoImplementation(t, e, filepath.Join(dir, "a.cpp"), 3, 6)
	assert.Nil(t, res.Target)
	assert.Equal(t, "Don't know where the implementation is!", res.Message)
}

func TestGotoImplementation_SearchDisabled(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.h": headerSrc})
	e, rec := newTestEngine(t, dir, WithExtensiveSearch(false))
	h := filepath.Join(dir, "a.h")

	res := gotoImplementation(t, e, h, 3, 24)
	require.NotNil(t, res.Search)
	assert.Equal(t, search.ModeImplementation, res.Search.Mode)
	assert.Equal(t, "foo", res.Search.Spelling)
	assert.Equal(t, h, res.Search.Name)
	require.NotNil(t, res.Search.Origin)
	assert.Equal(t, Location{File: h, Line: 2, Column: 6}, *res.Search.Origin)
	assert.Equal(t, []string{dir}, res.Search.Folders)
	assert.Equal(t, `Extensive search for "foo" is disabled`, res.Message)
	assert.Equal(t, []string{res.Message}, rec.status)
}

func TestGotoImplementation_SearchFindsDefinitionSemantically(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"include/a.h":       headerSrc,
		"src/impl.cpp":      "#include \"../include/a.h\"\n\nvoid foo(int x) {\n}\n",
		"src/unrelated.cpp": "int unrelated() { return 0; }\n",
	})
	e, _ := newTestEngine(t, dir)

	res := gotoImplementation(t, e, filepath.Join(dir, "include/a.h"), 3, 24)
	require.NotNil(t, res.Target, res.Message)
	assert.Equal(t, Location{File: filepath.Join(dir, "src/impl.cpp"), Line: 3, Column: 6}, *res.Target)
	assert.Len(t, e.History(), 1)
}

func TestGotoImplementation_SearchReturnsSingleCandidate(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.cpp":         callerSrc,
		"objc/bar.h":       "void bar(int x);\n",
		"objc/bar_impl.mm": "#import \"bar.h\"\n\nvoid bar(int x) {\n}\n",
	})
	e, _ := newTestEngine(t, dir, WithHistory(filepath.Join(t.TempDir(), "history.db")))

	res := gotoImplementation(t, e, filepath.Join(dir, "main.cpp"), 2, 5)
	assert.Nil(t, res.Target)
	require.Len(t, res.Choices, 1)
	assert.Equal(t, "void bar(int x)", res.Choices[0].Label)
	assert.Equal(t, Location{File: filepath.Join(dir, "objc/bar_impl.mm"), Line: 3, Column: 1}, res.Choices[0].Location)

	searches, err := e.Searches(10)
	require.NoError(t, err)
	require.Len(t, searches, 1)
	assert.Equal(t, "implementation", searches[0].Mode)
	assert.Equal(t, "bar", searches[0].Spelling)
	assert.Equal(t, 1, searches[0].Candidates)
	assert.Nil(t, searches[0].Target)
}

func TestGotoImplementation_PrototypeOutsideHeaderSearches(t *testing.T) {
	files := map[string]string{
		"main.cpp":  "void bar(int x);\nint main() { bar(1); return 0; }\n",
		"other.cpp": "void bar(int x) {\n}\n",
	}

	t.Run("search runs", func(t *testing.T) {
		dir := writeTree(t, files)
		e, _ := newTestEngine(t, dir)

		res := gotoImplementation(t, e, filepath.Join(dir, "main.cpp"), 2, 14)
		assert.Nil(t, res.Target)
		require.Len(t, res.Choices, 1, res.Message)
		assert.Equal(t, "void bar(int x)", res.Choices[0].Label)
		assert.Equal(t, Location{File: filepath.Join(dir, "other.cpp"), Line: 1, Column: 1}, res.Choices[0].Location)
	})

	t.Run("request names the prototype", func(t *testing.T) {
		dir := writeTree(t, files)
		e, _ := newTestEngine(t, dir, WithExtensiveSearch(false))
		mainFile := filepath.Join(dir, "main.cpp")

		// From the prototype itself and from the call.
		for _, pos := range [][2]int{{1, 6}, {2, 14}} {
			res := gotoImplementation(t, e, mainFile, pos[0], pos[1])
			require.NotNil(t, res.Search)
			assert.Equal(t, search.ModeImplementation, res.Search.Mode)
			assert.Equal(t, "bar", res.Search.Spelling)
			assert.Equal(t, mainFile, res.Search.Name)
			require.NotNil(t, res.Search.Origin)
			assert.Equal(t, Location{File: mainFile, Line: 1, Column: 6}, *res.Search.Origin)
		}
	})
}

func TestGotoImplementation_SearchFindsNothing(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.cpp": callerSrc})
	e, rec := newTestEngine(t, dir)

	res := gotoImplementation(t, e, filepath.Join(dir, "main.cpp"), 2, 5)
	assert.Nil(t, res.Target)
	assert.Empty(t, res.Choices)
	assert.Equal(t, "Don't know where the implementation is!", res.Message)
	assert.ErrorIs(t, res.Err(), ErrUnresolvable)
	assert.Contains(t, rec.status, res.Message)
}

func TestGotoImplementation_EmptyWord(t *testing.T) {
	dir := writeTree(t, map[string]string{"blank.cpp": "int x;\n\nint y;\n"})
	e, _ := newTestEngine(t, dir)

	res := gotoImplementation(t, e, filepath.Join(dir, "blank.cpp"), 2, 1)
	assert.Equal(t, "Don't know where the implementation is!", res.Message)
}

func TestGotoDefinition_MissingFile(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir())
	_, err := e.GotoDefinition(context.Background(), filepath.Join(t.TempDir(), "gone.cpp"), 1, 1)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}
