package search

import (
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// File filters applied to base names during enumeration.
const (
	ImplementationFiles = "*.{cpp,c,cc,m,mm}"
	DeclarationFiles    = "*.{h,hpp}"
)

// ImplementationPattern matches the opening of a function definition:
// a return type, qualifier, * or & followed by name(...) {.
func ImplementationPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(\w+\s+|\w+::|\*|&)(` + regexp.QuoteMeta(name) + `\s*\([^;\{]*\))\s*\{`)
}

// DeclarationPattern matches a prototype: the same head as
// ImplementationPattern, no braces in the parameter list, ending in ;.
func DeclarationPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(\w+\s+|\w+::|\*|&)(` + regexp.QuoteMeta(name) + `\s*\([^;\{}]*\))\s*;`)
}

// ClassPattern matches a class or struct declaration or definition.
func ClassPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|\s|\})\s*(class|struct)(\s+` + regexp.QuoteMeta(name) + `\s*)(;|\{)`)
}

// matchFile reports whether the base name of path matches filter.
func matchFile(filter, path string) bool {
	ok, err := doublestar.Match(filter, filepath.Base(path))
	return err == nil && ok
}

// excluded reports whether rel, a slash-separated path relative to a search
// folder, matches any exclude glob.
func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// signature joins the capture groups of a match, giving e.g.
// "void Widget::draw(int x)".
func signature(data []byte, m []int) string {
	var out []byte
	for i := 2; i+1 < len(m); i += 2 {
		if m[i] >= 0 {
			out = append(out, data[m[i]:m[i+1]]...)
		}
	}
	return string(out)
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int) (int, int) {
	line, lastNL := 1, -1
	for i := 0; i < offset && i < len(data); i++ {
		if data[i] == '\n' {
			line++
			lastNL = i
		}
	}
	return line, offset - lastNL
}
