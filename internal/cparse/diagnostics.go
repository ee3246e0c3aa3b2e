package cparse

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cnav/internal/semantic"
)

// maxDiagnosticsPerFile keeps a badly broken file from flooding the report.
const maxDiagnosticsPerFile = 50

func (u *unit) collectDiagnostics() {
	for _, f := range u.files {
		for _, inc := range f.includes {
			if inc.resolved == "" && !inc.system {
				u.diags = append(u.diags, semantic.Diagnostic{
					Location: inc.loc,
					Severity: semantic.SeverityFatal,
					Message:  fmt.Sprintf("'%s' file not found", inc.name),
				})
			}
		}
		if !f.root.HasError() {
			continue
		}
		var found []semantic.Diagnostic
		collectSyntaxErrors(f, f.root, &found)
		u.diags = append(u.diags, found...)
	}
}

func collectSyntaxErrors(f *file, n *sitter.Node, out *[]semantic.Diagnostic) {
	if n == nil || len(*out) >= maxDiagnosticsPerFile {
		return
	}
	switch {
	case n.Type() == "ERROR":
		*out = append(*out, semantic.Diagnostic{
			Location: f.loc(n),
			Severity: semantic.SeverityError,
			Message:  "syntax error",
		})
		return
	case n.IsMissing():
		*out = append(*out, semantic.Diagnostic{
			Location: f.loc(n),
			Severity: semantic.SeverityError,
			Message:  fmt.Sprintf("missing '%s'", n.Type()),
		})
		return
	}
	if !n.HasError() {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collectSyntaxErrors(f, n.Child(i), out)
	}
}
