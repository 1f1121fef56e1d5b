// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fabriclabs/workspace/internal/config"
	"github.com/fabriclabs/workspace/internal/watch"
	"github.com/fabriclabs/workspace/pkg/types"

	"github.com/spf13/cobra"
)

func newWatchCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &provisionFlagValues{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Provision, then provision again whenever the manifest or config changes",
		Long: `Run a full provisioning pass, then watch the manifest and the config file
and repeat the pass after each change. Clone directories are not watched.

Failed passes are reported and watching continues. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), app, rootFlags, flags, debounce)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.manifest, "manifest", "", "manifest file (default <root>/stores/meta.json)")
	f.StringVar(&flags.fetcher, "fetcher", "", "fetch backend: go-git, git, none")
	f.StringVar(&flags.provenance, "provenance", "", "provenance backend: sqlite, memory, none")
	f.IntVar(&flags.concurrency, "concurrency", 0, "maximum repositories processed at once")
	f.StringVar(&flags.timeout, "timeout", "", "per-repository timeout, e.g. 45s")
	f.StringVar(&flags.format, "format", formatText, "report format: "+strings.Join(reportFormats, ", "))
	f.BoolVar(&flags.noLibrary, "no-library", false, "skip the external library check")
	f.DurationVar(&debounce, "debounce", 0, "quiet period before re-running (default 500ms)")
	return cmd
}

func runWatch(ctx context.Context, app *App, rootFlags *rootFlagValues, flags *provisionFlagValues, debounce time.Duration) error {
	// pass reloads config and manifest so edits to either take effect.
	pass := func(ctx context.Context) error {
		sess, err := app.newSession(ctx, rootFlags)
		if err != nil {
			return err
		}
		if err := flags.apply(sess.cfg); err != nil {
			return usage(err)
		}
		res := sess.loadManifest(sess.cfg.ManifestPath())
		report, err := provisionOnce(ctx, app, sess, res, false)
		return finishRun(app, report, err, flags.format)
	}

	sess, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}
	if err := flags.apply(sess.cfg); err != nil {
		return usage(err)
	}

	files := []string{sess.cfg.ManifestPath()}
	if src, err := config.LoadWithSource(ctx, rootFlags.loadOptions()); err == nil && src.Path != "" {
		files = append(files, src.Path)
	}

	if err := pass(ctx); err != nil && !isReportFailure(err) {
		return err
	}

	w, err := watch.New(watch.Config{
		Files:    files,
		Debounce: debounce,
		Logger:   sess.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			sess.logger.Info("inputs changed, provisioning", "files", changed)
			err := pass(ctx)
			if err != nil && !isReportFailure(err) {
				// Keep watching so the next edit can fix the problem.
				writeLine(app.stderr, "%s", ErrorStyle.Render(formatErrorForDisplay(err, rootFlags.verbose)))
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	sess.logger.Info("watching", "files", files)
	return w.Run(ctx)
}

// isReportFailure reports whether err only reflects failed work items.
func isReportFailure(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Code == types.ExitFailure
}
