package cparse

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// extToLanguage maps file extensions to the grammar used to parse them.
// Objective-C sources have no grammar of their own; .m parses as C and .mm
// as C++, which is enough for function-level navigation. Headers parse as
// C++ so class declarations in them resolve.
var extToLanguage = map[string]string{
	".c":   "c",
	".m":   "c",
	".h":   "cpp",
	".cc":  "cpp",
	".cpp": "cpp",
	".cxx": "cpp",
	".mm":  "cpp",
	".hh":  "cpp",
	".hpp": "cpp",
	".hxx": "cpp",
}

// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"c":   c.GetLanguage(),
			"cpp": cpp.GetLanguage(),
		}
	})
}

// LanguageForFile returns the grammar name for a file path based on its
// extension. Returns ("", false) if the extension is not a C-family one.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// grammarFor returns the tree-sitter Language for a grammar name.
func grammarFor(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// IsSupported reports whether path has a C-family extension.
func IsSupported(path string) bool {
	_, ok := LanguageForFile(path)
	return ok
}
