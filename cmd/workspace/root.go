// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the full command tree around app.
func newRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Provision a multi-repository workspace from a manifest",
		Long: TitleStyle.Render("workspace") + SubtitleStyle.Render(" - provision a multi-repository workspace") + `

Reads a manifest of repositories, shallow-clones each one under the workspace
root, checks that every clone has the expected structure and records where it
came from. The external library checkout can be probed for its public surface.

` + SubtitleStyle.Render("Examples:") + `
  workspace provision               Provision every declared repository
  workspace provision actor         Provision only 'actor'
  workspace validate ./fabric       Check a checkout's structure
  workspace probe                   Probe the library checkout
  workspace provenance list         Show recorded provenance`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/workspace/workspace.cue)")
	pf.StringVar(&flags.root, "root", "", "workspace root directory (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text, json, logfmt")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newProvisionCommand(app, flags),
		newValidateCommand(app, flags),
		newProbeCommand(app, flags),
		newManifestCommand(app, flags),
		newProvenanceCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting code.
// It is called by main.main().
func Execute() {
	os.Exit(int(Main()))
}

// Main runs the CLI against os.Args and returns the exit code instead of exiting.
func Main() types.ExitCode {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return exitCodeFor(err)
}

func exitCodeFor(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return types.ExitFailure
}

// formatErrorForDisplay uses ActionableError's formatting when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderIssue prints the catalog guidance for id to the app's stderr.
func (a *App) renderIssue(id issue.Id) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("notty")
	if err != nil {
		return
	}
	fmt.Fprint(a.stderr, rendered)
}
