package cnav

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/jward/cnav/internal/search"
	"github.com/jward/cnav/internal/semantic"
)

// operatorChars bound a word when classifying a line by hand.
const operatorChars = `[\[\]\(\)&|.+\-/*,<>;]`

// notTypes can precede a name without declaring it.
var notTypes = map[string]bool{
	"return": true, "delete": true, "new": true, "goto": true, "case": true,
	"else": true, "sizeof": true, "typedef": true, "using": true, "namespace": true,
	"throw": true, "do": true,
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// lineText returns line (1-based) of src without its newline.
func lineText(src []byte, line int) (string, int) {
	offset := 0
	for i := 1; i < line; i++ {
		nl := bytes.IndexByte(src[offset:], '\n')
		if nl < 0 {
			return "", len(src)
		}
		offset += nl + 1
	}
	rest := src[offset:]
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSuffix(string(rest), "\r"), offset
}

// wordBounds returns the word around byte index i of text. A caret just
// past the end of a word still selects it.
func wordBounds(text string, i int) (int, int) {
	if i < 0 {
		i = 0
	}
	if i > len(text) {
		i = len(text)
	}
	if (i == len(text) || !isWordByte(text[i])) && i > 0 && isWordByte(text[i-1]) {
		i--
	}
	if i == len(text) || !isWordByte(text[i]) {
		return i, i
	}
	start, end := i, i
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	return start, end
}

// wordAt returns the identifier under (line, col).
func wordAt(src []byte, line, col int) string {
	text, _ := lineText(src, line)
	start, end := wordBounds(text, col-1)
	return text[start:end]
}

// syntacticStep classifies the word under the caret from the text of its
// line when no semantic cursor names it. A word followed by "(" is taken
// for a function call and searched for as a declaration; anything else is
// taken for a variable whose declaration or type is looked up.
func (e *Engine) syntacticStep(u semantic.Unit, src []byte, file string, line, col int) step {
	text, lineStart := lineText(src, line)
	start, end := wordBounds(text, col-1)
	if start == end {
		return step{}
	}
	spelling := text[start:end]

	q := regexp.QuoteMeta(spelling)
	re := regexp.MustCompile(`(^|\w+|=|` + operatorChars + `|\s)\s*(` + q + `)\s*($|==|` + operatorChars + `)`)
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		if m[4] != start || m[5] != end {
			continue
		}
		if m[6] >= 0 && text[m[6]:m[7]] == "(" {
			return step{search: &search.Request{
				Mode:     search.ModeDeclaration,
				Spelling: spelling,
				Name:     spelling,
			}}
		}
		loc, typeName := inferType(u, src, file, lineStart+start, spelling, text[end:])
		switch {
		case loc != nil:
			return step{target: loc}
		case typeName != "" && !strings.ContainsAny(typeName, ":<"):
			return step{search: &search.Request{
				Mode:       search.ModeDeclaration,
				Spelling:   typeName,
				Name:       typeName,
				Pattern:    search.ClassPattern(typeName),
				FileFilter: search.DeclarationFiles,
			}}
		}
		return step{}
	}
	return step{}
}

// inferType is a lightweight stand-in for semantic analysis. It looks for a
// declaration of variable name earlier in src and returns its position. When
// there is none but the word is itself used as a type, the type name is
// returned, with its location if the unit declares such a class.
func inferType(u semantic.Unit, src []byte, file string, offset int, name, after string) (*Location, string) {
	if loc := previousDeclaration(src, file, offset, name); loc != nil {
		return loc, ""
	}
	if !usedAsType(after) {
		return nil, ""
	}
	if u != nil {
		for _, s := range u.Symbols() {
			if s.Kind.IsClassDecl() && s.Name == name {
				loc := s.Location
				return &loc, name
			}
		}
	}
	return nil, name
}

// previousDeclaration finds the last "Type name" declaration of name that
// starts before offset.
func previousDeclaration(src []byte, file string, offset int, name string) *Location {
	re := regexp.MustCompile(`(?m)(?:^|[;{}(,])[ \t]*(?:(?:const|static|volatile|unsigned|signed|struct|class|enum)\s+)*` +
		`([A-Za-z_][\w:]*(?:<[^;{}()]*>)?)[\s*&]+(` + regexp.QuoteMeta(name) + `)\s*(?:[=;,)\[(]|$)`)
	if offset > len(src) {
		offset = len(src)
	}
	var found *Location
	for _, m := range re.FindAllSubmatchIndex(src[:offset], -1) {
		if notTypes[string(src[m[2]:m[3]])] {
			continue
		}
		line, col := position(src, m[4])
		found = &Location{File: file, Line: line, Column: col}
	}
	return found
}

// usedAsType reports whether the text after a word continues a declaration,
// e.g. "* w;" or " w = ...".
var typeUse = regexp.MustCompile(`^[\s*&]*[A-Za-z_]\w*\s*(?:[=;,)\[(]|$)`)

func usedAsType(after string) bool {
	return typeUse.MatchString(after)
}

// position converts a byte offset to a 1-based line and column.
func position(src []byte, offset int) (int, int) {
	line := 1 + bytes.Count(src[:offset], []byte("\n"))
	col := offset - bytes.LastIndexByte(src[:offset], '\n')
	return line, col
}
