// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultStoresDir holds the manifest and provenance database, relative to Root.
	DefaultStoresDir = "stores"
	// DefaultRepositoriesDir holds the clones, relative to the stores directory.
	DefaultRepositoriesDir = "repositories"
	// DefaultManifestFile is the manifest name inside the stores directory.
	DefaultManifestFile = "meta.json"
	// DefaultProvenanceFile is the sqlite database name inside the stores directory.
	DefaultProvenanceFile = "provenance.db"
	// DefaultLibraryPath is the external library checkout, relative to Root.
	DefaultLibraryPath = "fabric"
	// DefaultLibraryName is the descriptor name the library checkout must carry.
	DefaultLibraryName = "@fabric/core"

	LogFormatText   LogFormat = "text"
	LogFormatJSON   LogFormat = "json"
	LogFormatLogfmt LogFormat = "logfmt"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")

	cloneBackends      = []string{"go-git", "git", "none"}
	provenanceBackends = []string{"sqlite", "memory", "none"}
	logLevels          = []string{"debug", "info", "warn", "error"}
)

type (
	// LogFormat selects the charmbracelet/log formatter.
	LogFormat string

	// InvalidLogFormatError wraps ErrInvalidLogFormat.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidConfigError collects every field-level problem found by Config.Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the workspace configuration.
	Config struct {
		// Root anchors every relative path below.
		Root string `json:"root" toml:"root" mapstructure:"root"`
		// StoresDir defaults to <root>/stores when empty.
		StoresDir string `json:"stores_dir" toml:"stores_dir" mapstructure:"stores_dir"`
		// Manifest defaults to <stores_dir>/meta.json when empty.
		Manifest   string           `json:"manifest" toml:"manifest" mapstructure:"manifest"`
		Clone      CloneConfig      `json:"clone" toml:"clone" mapstructure:"clone"`
		Validation ValidationConfig `json:"validation" toml:"validation" mapstructure:"validation"`
		Provenance ProvenanceConfig `json:"provenance" toml:"provenance" mapstructure:"provenance"`
		Library    LibraryConfig    `json:"library" toml:"library" mapstructure:"library"`
		Log        LogConfig        `json:"log" toml:"log" mapstructure:"log"`
	}

	// CloneConfig controls fetching.
	CloneConfig struct {
		// Backend is one of "go-git", "git" or "none".
		Backend string `json:"backend" toml:"backend" mapstructure:"backend"`
		// Dir is where clones live. Defaults to <stores_dir>/repositories when empty.
		Dir string `json:"dir" toml:"dir" mapstructure:"dir"`
		// Timeout is a Go duration string bounding each repository's work item.
		Timeout     string `json:"timeout" toml:"timeout" mapstructure:"timeout"`
		Concurrency int    `json:"concurrency" toml:"concurrency" mapstructure:"concurrency"`
	}

	// ValidationConfig holds defaults applied to every cloned repository.
	ValidationConfig struct {
		Descriptor  string   `json:"descriptor" toml:"descriptor" mapstructure:"descriptor"`
		EntryPoint  string   `json:"entry_point" toml:"entry_point" mapstructure:"entry_point"`
		Directories []string `json:"directories" toml:"directories" mapstructure:"directories"`
	}

	// ProvenanceConfig selects the provenance store.
	ProvenanceConfig struct {
		Backend string `json:"backend" toml:"backend" mapstructure:"backend"`
		// Path defaults to <stores_dir>/provenance.db when empty.
		Path string `json:"path" toml:"path" mapstructure:"path"`
	}

	// LibraryConfig describes the external library checkout.
	LibraryConfig struct {
		Path        string   `json:"path" toml:"path" mapstructure:"path"`
		Name        string   `json:"name" toml:"name" mapstructure:"name"`
		Directories []string `json:"directories" toml:"directories" mapstructure:"directories"`
		// Required turns a missing checkout into a failure instead of a skip.
		Required bool `json:"required" toml:"required" mapstructure:"required"`
		Probe    bool `json:"probe" toml:"probe" mapstructure:"probe"`
		// Runtime is the node binary used by the capability probe.
		Runtime string `json:"runtime" toml:"runtime" mapstructure:"runtime"`
	}

	LogConfig struct {
		Level  string    `json:"level" toml:"level" mapstructure:"level"`
		Format LogFormat `json:"format" toml:"format" mapstructure:"format"`
	}
)

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",
		Clone: CloneConfig{
			Backend:     "go-git",
			Timeout:     "30s",
			Concurrency: 4,
		},
		Validation: ValidationConfig{
			Descriptor:  "package.json",
			EntryPoint:  "index.js",
			Directories: []string{},
		},
		Provenance: ProvenanceConfig{
			Backend: "sqlite",
		},
		Library: LibraryConfig{
			Path:        DefaultLibraryPath,
			Name:        DefaultLibraryName,
			Directories: []string{"types", "services", "tests"},
			Probe:       true,
			Runtime:     "node",
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// StoresPath resolves StoresDir against Root.
func (c *Config) StoresPath() string {
	if c.StoresDir == "" {
		return filepath.Join(c.Root, DefaultStoresDir)
	}
	return c.resolve(c.StoresDir)
}

// RepositoriesPath resolves the directory every <id>-repository clone lives in.
func (c *Config) RepositoriesPath() string {
	if c.Clone.Dir == "" {
		return filepath.Join(c.StoresPath(), DefaultRepositoriesDir)
	}
	return c.resolve(c.Clone.Dir)
}

// ManifestPath resolves Manifest, defaulting to the stores directory.
func (c *Config) ManifestPath() string {
	if c.Manifest == "" {
		return filepath.Join(c.StoresPath(), DefaultManifestFile)
	}
	return c.resolve(c.Manifest)
}

// ProvenancePath resolves the sqlite database path.
func (c *Config) ProvenancePath() string {
	if c.Provenance.Path == "" {
		return filepath.Join(c.StoresPath(), DefaultProvenanceFile)
	}
	return c.resolve(c.Provenance.Path)
}

// LibraryPath resolves the library checkout, or returns "" when disabled.
func (c *Config) LibraryPath() string {
	if c.Library.Path == "" {
		return ""
	}
	return c.resolve(c.Library.Path)
}

// TimeoutDuration parses Clone.Timeout. Validate guarantees it parses.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Clone.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Validate checks constraints the CUE schema does not cover and returns an
// *InvalidConfigError listing every problem.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root: must not be empty"))
	}
	if !slices.Contains(cloneBackends, c.Clone.Backend) {
		errs = append(errs, fmt.Errorf("clone.backend: %q is not one of %s", c.Clone.Backend, strings.Join(cloneBackends, ", ")))
	}
	if d, err := time.ParseDuration(c.Clone.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("clone.timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("clone.timeout: %s must be positive", c.Clone.Timeout))
	}
	if c.Clone.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("clone.concurrency: %d must be at least 1", c.Clone.Concurrency))
	}
	if !slices.Contains(provenanceBackends, c.Provenance.Backend) {
		errs = append(errs, fmt.Errorf("provenance.backend: %q is not one of %s", c.Provenance.Backend, strings.Join(provenanceBackends, ", ")))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level: %q is not one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if err := c.Log.Format.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate reports whether f is a known formatter.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return nil
	default:
		return &InvalidLogFormatError{Value: f}
	}
}

func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
