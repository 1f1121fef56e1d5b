// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fabriclabs/workspace/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and manage configuration",
		Long: `Configuration is layered: built-in defaults, then the first workspace.cue
found (--config, the user config directory, the current directory), then
WORKSPACE_* environment variables such as WORKSPACE_CLONE_BACKEND.`,
	}

	var dumpFormat string

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := config.LoadWithSource(cmd.Context(), rootFlags.loadOptions())
			if err != nil {
				return usage(err)
			}
			cfg := res.Config
			if rootFlags.root != "" {
				cfg.Root = rootFlags.root
			}

			source := "defaults"
			if res.Path != "" {
				source = res.Path
			}
			writeLine(app.stdout, "%s %s", TitleStyle.Render("Configuration"), SubtitleStyle.Render("("+source+")"))
			rows := [][2]string{
				{"root", cfg.Root},
				{"manifest", cfg.ManifestPath()},
				{"clone.backend", cfg.Clone.Backend},
				{"clone.dir", cfg.RepositoriesPath()},
				{"clone.timeout", cfg.TimeoutDuration().String()},
				{"clone.concurrency", fmt.Sprint(cfg.Clone.Concurrency)},
				{"validation.descriptor", cfg.Validation.Descriptor},
				{"validation.entry_point", cfg.Validation.EntryPoint},
				{"validation.directories", fmt.Sprint(cfg.Validation.Directories)},
				{"provenance.backend", cfg.Provenance.Backend},
				{"provenance.path", cfg.ProvenancePath()},
				{"library.path", orDisabled(cfg.LibraryPath())},
				{"library.name", cfg.Library.Name},
				{"library.probe", fmt.Sprint(cfg.Library.Probe)},
				{"library.runtime", cfg.Library.Runtime},
				{"log.level", cfg.Log.Level},
				{"log.format", string(cfg.Log.Format)},
			}
			for _, r := range rows {
				writeLine(app.stdout, "  %s %s", KeyStyle.Render(fmt.Sprintf("%-24s", r[0])), r[1])
			}
			return nil
		},
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE, JSON or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config.Load(cmd.Context(), rootFlags.loadOptions())
			if err != nil {
				return usage(err)
			}
			if rootFlags.root != "" {
				cfg.Root = rootFlags.root
			}
			out, err := config.Dump(cfg, config.DumpFormat(dumpFormat))
			if err != nil {
				return usage(err)
			}
			_, err = app.stdout.Write(out)
			return err
		},
	}
	dump.Flags().StringVar(&dumpFormat, "format", string(config.FormatCUE), "output format: cue, json, toml")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default workspace.cue into the config directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			writeLine(app.stdout, "%s %s", SuccessStyle.Render("config:"), path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the user config file location",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			writeLine(app.stdout, "%s", filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	}

	cmd.AddCommand(show, dump, initCmd, path)
	return cmd
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
