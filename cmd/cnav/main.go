package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/cnav"
	"github.com/jward/cnav/internal/config"
	"github.com/jward/cnav/internal/slogutil"
)

var (
	flagConfig    string
	flagDB        string
	flagFormat    string
	flagLogLevel  string
	flagExtensive bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cnav",
	Short:         "Source navigation for C, C++ and Objective-C",
	Long:          "cnav jumps to definitions and implementations, keeps a navigation history, completes symbols and reports diagnostics for C-family sources.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "settings file (default: .cnav.toml at the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "history database path (default: .cnav/history.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: from settings)")
	rootCmd.PersistentFlags().BoolVar(&flagExtensive, "extensive", true, "run Extensive Search when semantics cannot answer")

	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(implementationCmd)
	rootCmd.AddCommand(backCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(diagnosticsCmd)
}

// loadConfig reads the settings for the repository containing the working
// directory, or the file named by --config.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		path, err := filepath.Abs(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %q: %w", flagConfig, err)
		}
		return config.LoadFile(filepath.Dir(path), path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	return config.Load(findRepoRoot(cwd))
}

// openEngine builds an Engine from the settings file and the global flags.
func openEngine(cmd *cobra.Command) (*cnav.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database = resolveDBPath(flagDB)
	}
	if cmd.Flags().Changed("extensive") {
		cfg.ExtensiveSearch = flagExtensive
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger := slogutil.NewLogger(os.Stderr, slogutil.LevelFromString(level))

	e, err := cnav.New(
		cnav.WithConfig(cfg),
		cnav.WithLogger(logger),
		cnav.WithStatus(func(msg string) { logger.Debug("status", "message", msg) }),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath makes a --db value absolute against the working directory.
func resolveDBPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
