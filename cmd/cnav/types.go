package main

import "github.com/jward/cnav"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly source position. Line and Column are zero
// for a whole file.
type CLILocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// CLIChoice is one numbered entry of a choice list; pass Index to --choose.
type CLIChoice struct {
	Index    int         `json:"index"`
	Label    string      `json:"label"`
	Location CLILocation `json:"location"`
}

// CLINavigation is the outcome of definition and implementation.
type CLINavigation struct {
	Target  *CLILocation `json:"target,omitempty"`
	Choices []CLIChoice  `json:"choices,omitempty"`
	Message string       `json:"message,omitempty"`
	Faults  int          `json:"faults,omitempty"`
}

// CLIHistoryEntry is one frame of the navigation stack.
type CLIHistoryEntry struct {
	Origin CLILocation `json:"origin"`
	Target CLILocation `json:"target"`
}

// CLISearch is one recorded Extensive Search.
type CLISearch struct {
	ID         string       `json:"id"`
	Mode       string       `json:"mode"`
	Spelling   string       `json:"spelling"`
	Origin     string       `json:"origin_file"`
	Target     *CLILocation `json:"target,omitempty"`
	Candidates int          `json:"candidates"`
	Faults     int          `json:"faults,omitempty"`
	TimedOut   bool         `json:"timed_out,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// CLICompletion is a JSON-friendly completion proposal.
type CLICompletion struct {
	Label    string      `json:"label"`
	Kind     string      `json:"kind"`
	Detail   string      `json:"detail,omitempty"`
	Location CLILocation `json:"location"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Location CLILocation `json:"location"`
	Severity string      `json:"severity"`
	Message  string      `json:"message"`
	Hint     string      `json:"hint,omitempty"`
}

// CLIDiagnostics is the diagnostics report of one file.
type CLIDiagnostics struct {
	Items    []CLIDiagnostic `json:"items"`
	Errors   int             `json:"errors"`
	Warnings int             `json:"warnings"`
	Summary  string          `json:"summary,omitempty"`
	Busy     bool            `json:"busy,omitempty"`
}

func locationToCLI(loc cnav.Location) CLILocation {
	return CLILocation{File: loc.File, Line: loc.Line, Column: loc.Column}
}

func navigationToCLI(res cnav.Result) CLINavigation {
	out := CLINavigation{Message: res.Message, Faults: res.Faults}
	if res.Target != nil {
		t := locationToCLI(*res.Target)
		out.Target = &t
	}
	for i, c := range res.Choices {
		out.Choices = append(out.Choices, CLIChoice{Index: i + 1, Label: c.Label, Location: locationToCLI(c.Location)})
	}
	return out
}

func historyToCLI(entries []cnav.NavigationEntry) []CLIHistoryEntry {
	out := make([]CLIHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = CLIHistoryEntry{Origin: locationToCLI(e.Origin), Target: locationToCLI(e.Target)}
	}
	return out
}

func searchesToCLI(records []*cnav.SearchRecord) []CLISearch {
	out := make([]CLISearch, len(records))
	for i, r := range records {
		s := CLISearch{
			ID:         r.ID,
			Mode:       r.Mode,
			Spelling:   r.Spelling,
			Origin:     r.OriginFile,
			Candidates: r.Candidates,
			Faults:     r.Faults,
			TimedOut:   r.TimedOut,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Target != nil {
			t := locationToCLI(*r.Target)
			s.Target = &t
		}
		out[i] = s
	}
	return out
}

func completionsToCLI(items []cnav.CompletionItem) []CLICompletion {
	out := make([]CLICompletion, len(items))
	for i, it := range items {
		out[i] = CLICompletion{Label: it.Label, Kind: it.Kind, Detail: it.Detail, Location: locationToCLI(it.Location)}
	}
	return out
}

func diagnosticsToCLI(r cnav.DiagnosticsReport) CLIDiagnostics {
	out := CLIDiagnostics{
		Items:    make([]CLIDiagnostic, len(r.Items)),
		Errors:   r.Errors,
		Warnings: r.Warnings,
		Summary:  r.Summary,
		Busy:     r.Busy,
	}
	for i, d := range r.Items {
		out.Items[i] = CLIDiagnostic{Location: locationToCLI(d.Location), Severity: d.Severity, Message: d.Message, Hint: d.Hint}
	}
	return out
}
