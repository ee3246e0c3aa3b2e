package cnav

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jward/cnav/internal/semantic"
)

const includeHint = "Check that the include paths (-I options) point at the missing header."

// Diagnostics reports the problems found while parsing file's translation
// unit. When the unit is locked by other work the report is empty and Busy
// is set. Diagnostics located under a configured ignore directory are
// dropped.
func (e *Engine) Diagnostics(ctx context.Context, file string) (DiagnosticsReport, error) {
	file = absPath(file)
	entry, err := e.entry(ctx, file)
	if err != nil {
		return DiagnosticsReport{}, err
	}
	if !entry.TryLock() {
		return DiagnosticsReport{Busy: true}, nil
	}
	diags := entry.Unit().Diagnostics()
	entry.Unlock()

	report := DiagnosticsReport{Items: []DiagnosticItem{}}
	for _, d := range diags {
		if d.Severity == semantic.SeverityIgnored || e.ignored(d.Location.File) {
			continue
		}
		item := DiagnosticItem{
			Location: d.Location,
			Severity: d.Severity.String(),
			Message:  d.Message,
		}
		switch d.Severity {
		case semantic.SeverityFatal:
			if strings.Contains(d.Message, "not found") {
				item.Hint = includeHint
			}
			report.Errors++
		case semantic.SeverityError:
			report.Errors++
		case semantic.SeverityWarning:
			report.Warnings++
		}
		report.Items = append(report.Items, item)
	}
	report.Summary = summarize(report.Errors, report.Warnings)
	return report, nil
}

// ignored reports whether path lies inside one of the ignored directories.
func (e *Engine) ignored(path string) bool {
	abs := absPath(path)
	for _, dir := range e.ignoreDirs {
		dir = filepath.Clean(dir)
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func summarize(errs, warnings int) string {
	var parts []string
	if errs > 0 {
		parts = append(parts, fmt.Sprintf("%d Error%s", errs, plural(errs)))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d Warning%s", warnings, plural(warnings)))
	}
	return strings.Join(parts, ", ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
