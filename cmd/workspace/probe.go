// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/internal/probe"

	"github.com/spf13/cobra"
)

type probeFlagValues struct {
	observation     string
	saveObservation string
	runtime         string
	jsonOut         bool
	strict          bool
}

func newProbeCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &probeFlagValues{}

	cmd := &cobra.Command{
		Use:   "probe [path]",
		Short: "Compare the library checkout against its expected surface",
		Long: `Load the external library and compare its exports with the expected
surface: the Fabric root export, Actor and Message.

The path defaults to the configured library checkout. A path that does not
exist or a missing runtime skips the probe instead of failing it, unless
--strict is given.

--save-observation writes what the runtime saw to a JSON file, which
--observation can replay later without a runtime.

Examples:
  workspace probe
  workspace probe ../fabric --save-observation fabric.json
  workspace probe ../fabric --observation fabric.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, app, rootFlags, flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.observation, "observation", "", "replay a saved observation instead of running the library")
	f.StringVar(&flags.saveObservation, "save-observation", "", "write the raw observation to this file")
	f.StringVar(&flags.runtime, "runtime", "", "runtime executable (overrides config)")
	f.BoolVar(&flags.jsonOut, "json", false, "output the result as JSON")
	f.BoolVar(&flags.strict, "strict", false, "treat a skipped probe as a failure")
	return cmd
}

func runProbe(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *probeFlagValues, args []string) error {
	ctx := cmd.Context()
	sess, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}

	modulePath := sess.cfg.LibraryPath()
	if len(args) == 1 {
		modulePath = args[0]
	}
	if modulePath == "" {
		return usage(errors.New("no library path configured; pass one as an argument"))
	}

	inspector, err := flags.inspector(sess.cfg.Library.Runtime)
	if err != nil {
		return err
	}

	res, err := probe.Probe(ctx, inspector, modulePath, probe.FabricSurface())
	if err != nil {
		return err
	}
	sess.logger.Debug("probe finished", "module", res.Module, "inspector", res.Inspector, "status", res.Status)

	if flags.saveObservation != "" && res.Observation != nil {
		if err := saveObservation(flags.saveObservation, res.Observation); err != nil {
			return err
		}
		sess.logger.Info("observation saved", "path", flags.saveObservation)
	}

	if flags.jsonOut {
		if err := writeJSON(app.stdout, res); err != nil {
			return err
		}
	} else {
		renderProbe(app, res)
	}

	switch {
	case res.Status == probe.StatusFailed:
		return failed("library surface does not match")
	case res.Status == probe.StatusSkipped && flags.strict:
		return failed("probe skipped: %s", res.Reason)
	case res.Status == probe.StatusSkipped && !flags.jsonOut:
		app.renderIssue(issue.RuntimeUnavailableId)
	}
	return nil
}

// inspector selects replay or live inspection.
func (f *probeFlagValues) inspector(configured string) (probe.Inspector, error) {
	if f.observation == "" {
		runtime := configured
		if f.runtime != "" {
			runtime = f.runtime
		}
		return &probe.NodeInspector{Binary: runtime}, nil
	}

	file, err := os.Open(f.observation)
	if err != nil {
		return nil, usage(issue.WrapWithContext(err, "read observation", f.observation))
	}
	defer func() { _ = file.Close() }()

	obs, err := probe.ReadObservation(file)
	if err != nil {
		return nil, usage(issue.WrapWithContext(err, "read observation", f.observation))
	}
	return &probe.StaticInspector{Observation: obs}, nil
}

func saveObservation(path string, obs *probe.Observation) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to save observation: %w", closeErr)
		}
	}()
	return writeJSON(file, obs)
}

func renderProbe(app *App, res *probe.Result) {
	writeLine(app.stdout, "%s %s %s", TitleStyle.Render("Probe"), SubtitleStyle.Render(res.Module), SubtitleStyle.Render("("+res.Inspector+")"))
	for _, tr := range res.Types {
		writeLine(app.stdout, "%s %-10s %s", probeMark(tr.Status), KeyStyle.Render(tr.Name), tr.Status)
	}
	renderProbeFailures(app.stdout, res)

	line := fmt.Sprintf("probe %s", res.Status)
	if res.Reason != "" {
		line += ": " + res.Reason
	}
	switch res.Status {
	case probe.StatusPassed:
		writeLine(app.stdout, "%s", SuccessStyle.Render(line))
	case probe.StatusFailed:
		writeLine(app.stdout, "%s", ErrorStyle.Render(line))
	default:
		writeLine(app.stdout, "%s", WarningStyle.Render(line))
	}
}

func probeMark(s probe.Status) string {
	switch s {
	case probe.StatusPassed:
		return SuccessStyle.Render("✓")
	case probe.StatusFailed:
		return ErrorStyle.Render("✗")
	default:
		return WarningStyle.Render("-")
	}
}
