// Package config loads cnav settings from a .cnav.toml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the settings file looked up at the project root.
const FileName = ".cnav.toml"

// Duration is a time.Duration written as a string ("60s", "100ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds every cnav setting.
type Config struct {
	Folders       []string `toml:"folders"`
	Options       []string `toml:"options"`
	OptionsScript string   `toml:"options_script"`

	Workers        int      `toml:"workers"`
	SearchTimeout  Duration `toml:"search_timeout"`
	StatusInterval Duration `toml:"status_interval"`
	StatusBurst    int      `toml:"status_burst"`

	ExtensiveSearch    bool `toml:"extensive_search"`
	PopOnClose         bool `toml:"pop_on_close"`
	RemoveOnClose      bool `toml:"remove_on_close"`
	WarmUpInBackground bool `toml:"warm_up_in_background"`

	Exclude                []string `toml:"exclude"`
	DiagnosticIgnoreDirs   []string `toml:"diagnostic_ignore_dirs"`
	DontCompleteStartswith []string `toml:"dont_complete_startswith"`

	Database string `toml:"database"`
	LogLevel string `toml:"log_level"`
}

// Default returns the settings used when no file overrides them. root is the
// project root and becomes the only search folder.
func Default(root string) *Config {
	return &Config{
		Folders:                []string{root},
		Options:                []string{},
		Workers:                runtime.NumCPU(),
		SearchTimeout:          Duration{60 * time.Second},
		StatusInterval:         Duration{100 * time.Millisecond},
		StatusBurst:            30,
		ExtensiveSearch:        true,
		PopOnClose:             true,
		RemoveOnClose:          true,
		WarmUpInBackground:     true,
		Exclude:                []string{"**/.git/**", "**/node_modules/**"},
		DiagnosticIgnoreDirs:   []string{},
		DontCompleteStartswith: []string{"operator", "~"},
		Database:               filepath.Join(".cnav", "history.db"),
		LogLevel:               "warn",
	}
}

// ParseError reports a malformed settings file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads root/.cnav.toml over the defaults. A missing file is not an
// error. Relative paths in the file are resolved against root.
func Load(root string) (*Config, error) {
	return LoadFile(root, filepath.Join(root, FileName))
}

// LoadFile reads path over the defaults for root.
func LoadFile(root, path string) (*Config, error) {
	cfg := Default(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	// Arrays in the file replace the defaults rather than extend them.
	defaults := *cfg
	cfg.Folders, cfg.Options, cfg.Exclude = nil, nil, nil
	cfg.DiagnosticIgnoreDirs, cfg.DontCompleteStartswith = nil, nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.fillSlices(&defaults)
	cfg.resolvePaths(root)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) fillSlices(d *Config) {
	if c.Folders == nil {
		c.Folders = d.Folders
	}
	if c.Options == nil {
		c.Options = d.Options
	}
	if c.Exclude == nil {
		c.Exclude = d.Exclude
	}
	if c.DiagnosticIgnoreDirs == nil {
		c.DiagnosticIgnoreDirs = d.DiagnosticIgnoreDirs
	}
	if c.DontCompleteStartswith == nil {
		c.DontCompleteStartswith = d.DontCompleteStartswith
	}
}

func (c *Config) resolvePaths(root string) {
	for i, f := range c.Folders {
		c.Folders[i] = abs(root, f)
	}
	for i, d := range c.DiagnosticIgnoreDirs {
		c.DiagnosticIgnoreDirs[i] = abs(root, d)
	}
	if c.OptionsScript != "" {
		c.OptionsScript = abs(root, c.OptionsScript)
	}
	if c.Database != "" {
		c.Database = abs(root, c.Database)
	}
}

func abs(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.StatusBurst < 1 {
		errs = append(errs, fmt.Errorf("status_burst must be at least 1, got %d", c.StatusBurst))
	}
	if c.SearchTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("search_timeout must be positive, got %s", c.SearchTimeout))
	}
	if c.StatusInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("status_interval must be positive, got %s", c.StatusInterval))
	}
	return errors.Join(errs...)
}
