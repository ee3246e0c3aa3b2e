package cnav

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/jward/cnav/internal/semantic"
)

var (
	declaringRe = regexp.MustCompile(`[,\s]*(\w+)\s+\w+$`)
	memberRe    = regexp.MustCompile(`(([a-zA-Z_]+[0-9_]*)|([\)\]])+)((\.)|(->))$`)
)

// completeAfter are the words that may precede a name without declaring it.
var completeAfter = map[string]bool{
	"new": true, "delete": true, "return": true, "goto": true, "case": true,
	"const": true, "static": true, "class": true, "struct": true,
	"typedef": true, "union": true,
}

// Complete proposes symbols of file's unit for the word ending at (line,
// col). An empty prefix takes the partial word before the caret. After "."
// or "->" only members are proposed, restricted to the receiver's type when
// it can be told.
func (e *Engine) Complete(ctx context.Context, file string, line, col int, prefix string) ([]CompletionItem, error) {
	file = absPath(file)
	src, err := e.source(file)
	if err != nil {
		return nil, err
	}
	text, _ := lineText(src, line)
	before := text
	if col-1 < len(text) {
		before = text[:max(col-1, 0)]
	}

	i := len(before)
	for i > 0 && isWordByte(before[i-1]) {
		i--
	}
	if prefix == "" {
		prefix = before[i:]
	}
	head := before[:i]

	if m := declaringRe.FindStringSubmatch(before); m != nil && !completeAfter[m[1]] {
		return nil, nil
	}

	entry, err := e.entry(ctx, file)
	if err != nil {
		return nil, err
	}
	entry.Lock()
	defer entry.Unlock()
	u := entry.Unit()

	members := false
	owner := ""
	if m := memberRe.FindStringSubmatchIndex(head); m != nil {
		members = true
		if m[4] >= 0 {
			owner = receiverType(u, file, line, m[4]+1)
		}
	}

	seen := make(map[string]bool)
	var items []CompletionItem
	for _, s := range u.Symbols() {
		if !strings.HasPrefix(s.Name, prefix) || e.suppressed(s.Name) {
			continue
		}
		if members {
			if !s.Kind.IsMember() || owner != "" && lastSegment(s.Parent) != owner {
				continue
			}
		}
		key := s.Name + "\x00" + s.Kind.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, CompletionItem{
			Label:    s.Name,
			Kind:     s.Kind.String(),
			Detail:   s.Parent,
			Location: s.Location,
		})
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].Label != items[b].Label {
			return items[a].Label < items[b].Label
		}
		return items[a].Kind < items[b].Kind
	})
	return items, nil
}

func (e *Engine) suppressed(name string) bool {
	for _, p := range e.dontComplete {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// receiverType returns the simple name of the declared type of the variable
// at (line, col), or "" when it is unknown.
func receiverType(u semantic.Unit, file string, line, col int) string {
	c := u.CursorAt(file, line, col)
	if c == nil {
		return ""
	}
	if r := c.Reference(); r != nil {
		c = r
	}
	if !c.Kind().IsVariableDecl() {
		return ""
	}
	for _, child := range c.Children() {
		if child.Kind() == semantic.KindTypeRef {
			return lastSegment(child.Spelling())
		}
	}
	return ""
}

func lastSegment(qualified string) string {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}
