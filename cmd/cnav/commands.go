package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/cnav"
)

var (
	flagChoose   int
	flagSearches int
	flagKeep     int
	flagClear    bool
)

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Go to the declaration of the symbol at a position",
	Long:  "Resolves the symbol at file:line:col to its declaration and records the jump. Line and column numbers are 1-based.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNavigate(cmd, args, "definition", (*cnav.Engine).GotoDefinition)
	},
}

var implementationCmd = &cobra.Command{
	Use:   "implementation <file> <line> <col>",
	Short: "Go to the implementation of the symbol at a position",
	Long:  "Resolves the symbol at file:line:col to its definition, searching the project folders when needed. Line and column numbers are 1-based.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNavigate(cmd, args, "implementation", (*cnav.Engine).GotoImplementation)
	},
}

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Return to where the last jump started",
	Args:  cobra.NoArgs,
	RunE:  runBack,
}

var closeCmd = &cobra.Command{
	Use:   "close <file>",
	Short: "Tell cnav a file was closed",
	Long:  "Pops the navigation frames that target the file from the top of the history.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the navigation history",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var completeCmd = &cobra.Command{
	Use:   "complete <file> <line> <col> [prefix]",
	Short: "Complete the symbol being typed at a position",
	Args:  cobra.RangeArgs(3, 4),
	RunE:  runComplete,
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Report parse problems in a file and its headers",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostics,
}

func init() {
	for _, c := range []*cobra.Command{definitionCmd, implementationCmd} {
		c.Flags().IntVar(&flagChoose, "choose", 0, "navigate to the N-th choice (1-based) when the answer is a list")
	}
	historyCmd.Flags().IntVar(&flagSearches, "searches", 0, "show the N most recent Extensive Searches instead")
	historyCmd.Flags().IntVar(&flagKeep, "keep", 0, "drop all but the newest N jumps")
	historyCmd.Flags().BoolVar(&flagClear, "clear", false, "empty the history")
}

// --- Helpers ---

// parsePosition parses <file> <line> <col> arguments. Line and column are
// 1-based.
func parsePosition(args []string) (string, int, int, error) {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return "", 0, 0, fmt.Errorf("resolving file path %q: %w", args[0], err)
	}
	line, err := parsePositiveArg(args[1], "line")
	if err != nil {
		return "", 0, 0, err
	}
	col, err := parsePositiveArg(args[2], "col")
	if err != nil {
		return "", 0, 0, err
	}
	return file, line, col, nil
}

func parsePositiveArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}

// outputResult marshals a CLIResult to w in the selected format.
func outputResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// --- Commands ---

type navigateFunc func(e *cnav.Engine, ctx context.Context, file string, line, col int) (cnav.Result, error)

func runNavigate(cmd *cobra.Command, args []string, command string, navigate navigateFunc) error {
	file, line, col, err := parsePosition(args)
	if err != nil {
		return outputError(cmd, command, err)
	}
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer e.Close()

	res, err := navigate(e, cmd.Context(), file, line, col)
	if err != nil {
		return outputError(cmd, command, err)
	}
	if flagChoose > 0 && len(res.Choices) > 0 {
		if flagChoose > len(res.Choices) {
			return outputError(cmd, command, fmt.Errorf("--choose %d: only %d choices", flagChoose, len(res.Choices)))
		}
		origin := cnav.Location{File: file, Line: line, Column: col}
		if res, err = e.Choose(origin, res.Choices[flagChoose-1]); err != nil {
			return outputError(cmd, command, err)
		}
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: command, Results: navigationToCLI(res)})
}

func runBack(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, "back", err)
	}
	defer e.Close()

	loc, ok, err := e.GoBack()
	if err != nil {
		return outputError(cmd, "back", err)
	}
	var results any
	if ok {
		l := locationToCLI(loc)
		results = &l
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "back", Results: results})
}

func runClose(cmd *cobra.Command, args []string) error {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return outputError(cmd, "close", err)
	}
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, "close", err)
	}
	defer e.Close()

	if err := e.FileClosed(file); err != nil {
		return outputError(cmd, "close", err)
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "close", Results: historyToCLI(e.History())})
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, "history", err)
	}
	defer e.Close()

	if flagSearches > 0 {
		records, err := e.Searches(flagSearches)
		if err != nil {
			return outputError(cmd, "history", err)
		}
		return outputResult(cmd.OutOrStdout(), CLIResult{Command: "history", Results: searchesToCLI(records)})
	}
	switch {
	case flagClear:
		err = e.ClearHistory()
	case flagKeep > 0:
		err = e.TrimHistory(flagKeep)
	}
	if err != nil {
		return outputError(cmd, "history", err)
	}
	entries := historyToCLI(e.History())
	total := len(entries)
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "history", Results: entries, TotalCount: &total})
}

func runComplete(cmd *cobra.Command, args []string) error {
	file, line, col, err := parsePosition(args)
	if err != nil {
		return outputError(cmd, "complete", err)
	}
	prefix := ""
	if len(args) == 4 {
		prefix = args[3]
	}
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, "complete", err)
	}
	defer e.Close()

	items, err := e.Complete(cmd.Context(), file, line, col, prefix)
	if err != nil {
		return outputError(cmd, "complete", err)
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "complete", Results: completionsToCLI(items)})
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	e, err := openEngine(cmd)
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	defer e.Close()

	report, err := e.Diagnostics(cmd.Context(), file)
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "diagnostics", Results: diagnosticsToCLI(report)})
}
