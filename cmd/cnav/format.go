package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocation renders "file:line:col", or the bare path for a whole file.
func formatLocation(loc CLILocation) string {
	if loc.Line <= 0 {
		return loc.File
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column)
}

// formatNavigationText prints the target, a numbered choice table, or the
// status message.
func formatNavigationText(w io.Writer, nav CLINavigation) {
	switch {
	case nav.Target != nil:
		fmt.Fprintln(w, formatLocation(*nav.Target))
	case len(nav.Choices) > 0:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tLABEL\tLOCATION")
		for _, c := range nav.Choices {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", c.Index, c.Label, formatLocation(c.Location))
		}
		tw.Flush()
	case nav.Message != "":
		fmt.Fprintln(w, nav.Message)
	}
	if nav.Faults > 0 {
		fmt.Fprintf(w, "(%d search workers failed)\n", nav.Faults)
	}
}

// formatHistoryText prints one "origin -> target" line per frame, oldest
// first.
func formatHistoryText(w io.Writer, entries []CLIHistoryEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s -> %s\n", formatLocation(e.Origin), formatLocation(e.Target))
	}
}

// formatSearchesText formats CLISearch results as aligned columns.
func formatSearchesText(w io.Writer, searches []CLISearch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tSPELLING\tRESULT\tDURATION")
	for _, s := range searches {
		result := fmt.Sprintf("%d candidates", s.Candidates)
		if s.Target != nil {
			result = formatLocation(*s.Target)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\n", s.Mode, s.Spelling, result, s.DurationMS)
	}
	tw.Flush()
}

// formatCompletionsText formats CLICompletion results as aligned columns.
func formatCompletionsText(w io.Writer, items []CLICompletion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tKIND\tDETAIL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Label, it.Kind, it.Detail)
	}
	tw.Flush()
}

// formatDiagnosticsText prints compiler-style lines followed by the summary.
func formatDiagnosticsText(w io.Writer, d CLIDiagnostics) {
	if d.Busy {
		fmt.Fprintln(w, "Translation unit is busy")
		return
	}
	for _, it := range d.Items {
		fmt.Fprintf(w, "%s: %s: %s\n", formatLocation(it.Location), strings.ToLower(it.Severity), it.Message)
		if it.Hint != "" {
			fmt.Fprintf(w, "  %s\n", it.Hint)
		}
	}
	if d.Summary != "" {
		fmt.Fprintln(w, d.Summary)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLINavigation:
		formatNavigationText(w, v)
	case *CLILocation:
		fmt.Fprintln(w, formatLocation(*v))
	case []CLIHistoryEntry:
		formatHistoryText(w, v)
	case []CLISearch:
		formatSearchesText(w, v)
	case []CLICompletion:
		formatCompletionsText(w, v)
	case CLIDiagnostics:
		formatDiagnosticsText(w, v)
	case nil:
		// Nothing to show, e.g. back on an empty history.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
