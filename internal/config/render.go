// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	FormatCUE  DumpFormat = "cue"
	FormatJSON DumpFormat = "json"
	FormatTOML DumpFormat = "toml"
)

// ErrUnknownDumpFormat is returned by Dump for unsupported formats.
var ErrUnknownDumpFormat = errors.New("unknown dump format")

// DumpFormat names an output encoding for 'config dump'.
type DumpFormat string

// Dump renders cfg in the requested format.
func Dump(cfg *Config, format DumpFormat) ([]byte, error) {
	switch format {
	case FormatCUE, "":
		return []byte(GenerateCUE(cfg)), nil
	case FormatJSON:
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config as json: %w", err)
		}
		return append(out, '\n'), nil
	case FormatTOML:
		out, err := toml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config as toml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: cue, json, toml)", ErrUnknownDumpFormat, format)
	}
}

// GenerateCUE generates a CUE representation of the configuration that
// validates against #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// Workspace configuration\n\n")
	fmt.Fprintf(&sb, "root: %q\n", cfg.Root)
	if cfg.StoresDir != "" {
		fmt.Fprintf(&sb, "stores_dir: %q\n", cfg.StoresDir)
	}
	if cfg.Manifest != "" {
		fmt.Fprintf(&sb, "manifest: %q\n", cfg.Manifest)
	}

	sb.WriteString("\nclone: {\n")
	fmt.Fprintf(&sb, "\tbackend:     %q\n", cfg.Clone.Backend)
	if cfg.Clone.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:         %q\n", cfg.Clone.Dir)
	}
	fmt.Fprintf(&sb, "\ttimeout:     %q\n", cfg.Clone.Timeout)
	fmt.Fprintf(&sb, "\tconcurrency: %d\n", cfg.Clone.Concurrency)
	sb.WriteString("}\n")

	sb.WriteString("\nvalidation: {\n")
	fmt.Fprintf(&sb, "\tdescriptor:  %q\n", cfg.Validation.Descriptor)
	fmt.Fprintf(&sb, "\tentry_point: %q\n", cfg.Validation.EntryPoint)
	fmt.Fprintf(&sb, "\tdirectories: %s\n", cueList(cfg.Validation.Directories))
	sb.WriteString("}\n")

	sb.WriteString("\nprovenance: {\n")
	fmt.Fprintf(&sb, "\tbackend: %q\n", cfg.Provenance.Backend)
	if cfg.Provenance.Path != "" {
		fmt.Fprintf(&sb, "\tpath:    %q\n", cfg.Provenance.Path)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlibrary: {\n")
	fmt.Fprintf(&sb, "\tpath:        %q\n", cfg.Library.Path)
	fmt.Fprintf(&sb, "\tname:        %q\n", cfg.Library.Name)
	fmt.Fprintf(&sb, "\tdirectories: %s\n", cueList(cfg.Library.Directories))
	fmt.Fprintf(&sb, "\trequired:    %v\n", cfg.Library.Required)
	fmt.Fprintf(&sb, "\tprobe:       %v\n", cfg.Library.Probe)
	fmt.Fprintf(&sb, "\truntime:     %q\n", cfg.Library.Runtime)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel:  %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	return sb.String()
}

// CreateDefaultConfig writes the default configuration into the config
// directory unless a file is already there, returning the file path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

func cueList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
