// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "workspace"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "workspace"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. WORKSPACE_CLONE_BACKEND.
	EnvPrefix = "WORKSPACE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the per-user configuration directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (or ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, AppName), nil
}

// loadWithOptions performs option-driven config loading and reports which
// file, if any, was merged.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Run 'workspace config dump --format cue' to see a valid file").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if opts.BaseDir != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(string(opts.BaseDir), cfg.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check WORKSPACE_* environment variables as well as the config file").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("stores_dir", d.StoresDir)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("clone.backend", d.Clone.Backend)
	v.SetDefault("clone.dir", d.Clone.Dir)
	v.SetDefault("clone.timeout", d.Clone.Timeout)
	v.SetDefault("clone.concurrency", d.Clone.Concurrency)
	v.SetDefault("validation.descriptor", d.Validation.Descriptor)
	v.SetDefault("validation.entry_point", d.Validation.EntryPoint)
	v.SetDefault("validation.directories", d.Validation.Directories)
	v.SetDefault("provenance.backend", d.Provenance.Backend)
	v.SetDefault("provenance.path", d.Provenance.Path)
	v.SetDefault("library.path", d.Library.Path)
	v.SetDefault("library.name", d.Library.Name)
	v.SetDefault("library.directories", d.Library.Directories)
	v.SetDefault("library.required", d.Library.Required)
	v.SetDefault("library.probe", d.Library.Probe)
	v.SetDefault("library.runtime", d.Library.Runtime)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", string(d.Log.Format))
}

// resolveConfigFile picks the file to merge. An explicit path must exist;
// otherwise the config directory and then the working directory are tried,
// and finding neither is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'workspace config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
		return path, nil
	}

	cfgDir, err := configDirWithOverride(string(opts.ConfigDirPath))
	if err != nil {
		return "", err
	}
	fileName := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(cfgDir, fileName); fileExists(p) {
		return p, nil
	}

	local := fileName
	if opts.BaseDir != "" {
		local = filepath.Join(string(opts.BaseDir), fileName)
	}
	if fileExists(local) {
		return local, nil
	}
	return "", nil
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
//
// The file is decoded to map[string]any rather than through cueutil.ParseAndDecode
// because every field is optional and the values have to layer over viper's
// defaults instead of replacing them.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	cctx := cuecontext.New()
	schemaValue := cctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := cctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
