package cnav

import (
	"github.com/jward/cnav/internal/config"
	"github.com/jward/cnav/internal/search"
	"github.com/jward/cnav/internal/semantic"
	"github.com/jward/cnav/internal/store"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=) so no conversion is needed.

type Location = semantic.Location
type Kind = semantic.Kind
type Severity = semantic.Severity
type Config = config.Config
type SearchRequest = search.Request
type SearchRecord = store.SearchRecord

// Choice is one entry of an interactive choice list: an override set member
// or an Extensive Search candidate.
type Choice struct {
	Label    string   `json:"label"`
	Location Location `json:"location"`
}

// Result is the outcome of a navigation command. At most one of Target,
// Choices and Search is set. Message carries the status text shown to the
// user when there is nothing to navigate to.
type Result struct {
	// Target is where the command navigated. It has already been pushed on
	// the navigation stack.
	Target *Location `json:"target,omitempty"`
	// Choices defers target selection to the caller; see Engine.Choose.
	Choices []Choice `json:"choices,omitempty"`
	// Search is an Extensive Search that was needed but not run because
	// extensive search is disabled.
	Search  *SearchRequest `json:"-"`
	Message string         `json:"message,omitempty"`
	// Faults counts Extensive Search workers that failed.
	Faults int `json:"faults,omitempty"`
}

// NavigationEntry is one frame of the navigation stack.
type NavigationEntry struct {
	Origin Location `json:"origin"`
	Target Location `json:"target"`
}

// CompletionItem is one code completion proposal.
type CompletionItem struct {
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Detail   string   `json:"detail,omitempty"`
	Location Location `json:"location"`
}

// DiagnosticItem is one rendered diagnostic.
type DiagnosticItem struct {
	Location Location `json:"location"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint,omitempty"`
}

// DiagnosticsReport is the diagnostics of one translation unit.
type DiagnosticsReport struct {
	Items    []DiagnosticItem `json:"items"`
	Errors   int              `json:"errors"`
	Warnings int              `json:"warnings"`
	// Summary reads like "2 Errors, 1 Warning"; empty when both are zero.
	Summary string `json:"summary,omitempty"`
	// Busy is set when the unit was locked by other work and nothing was
	// read.
	Busy bool `json:"busy,omitempty"`
}
