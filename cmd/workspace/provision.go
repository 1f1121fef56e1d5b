// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/fabriclabs/workspace/internal/config"
	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/internal/workspace"
	"github.com/fabriclabs/workspace/pkg/manifest"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type provisionFlagValues struct {
	manifest    string
	fetcher     string
	provenance  string
	concurrency int
	timeout     string
	format      string
	progress    bool
	noLibrary   bool
}

func newProvisionCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &provisionFlagValues{}

	cmd := &cobra.Command{
		Use:   "provision [id...]",
		Short: "Clone, validate and record every declared repository",
		Long: `Provision the repositories declared in the manifest.

Each repository is shallow-cloned into <root>/stores/repositories/<id>-repository
(see clone.dir), replacing any previous clone, then checked for a package descriptor, the expected package
name, an entry point and its required directories. Passing clones have their
provenance recorded. Repositories are processed concurrently and one failure
never stops the others.

With no fetch mechanism available every repository is skipped and existing
clones are left untouched.

Examples:
  workspace provision
  workspace provision actor message
  workspace provision --fetcher git --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, app, rootFlags, flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.manifest, "manifest", "", "manifest file (default <root>/stores/meta.json)")
	f.StringVar(&flags.fetcher, "fetcher", "", "fetch backend: go-git, git, none")
	f.StringVar(&flags.provenance, "provenance", "", "provenance backend: sqlite, memory, none")
	f.IntVar(&flags.concurrency, "concurrency", 0, "maximum repositories processed at once")
	f.StringVar(&flags.timeout, "timeout", "", "per-repository timeout, e.g. 45s")
	f.StringVar(&flags.format, "format", formatText, "report format: "+strings.Join(reportFormats, ", "))
	f.BoolVar(&flags.progress, "progress", false, "show a progress bar on stderr")
	f.BoolVar(&flags.noLibrary, "no-library", false, "skip the external library check")

	return cmd
}

// apply copies explicitly set flags onto cfg and revalidates it.
func (f *provisionFlagValues) apply(cfg *config.Config) error {
	if f.manifest != "" {
		cfg.Manifest = f.manifest
	}
	if f.fetcher != "" {
		cfg.Clone.Backend = f.fetcher
	}
	if f.provenance != "" {
		cfg.Provenance.Backend = f.provenance
	}
	if f.concurrency != 0 {
		cfg.Clone.Concurrency = f.concurrency
	}
	if f.timeout != "" {
		cfg.Clone.Timeout = f.timeout
	}
	if f.noLibrary {
		cfg.Library.Path = ""
	}
	if !slices.Contains(reportFormats, f.format) {
		return fmt.Errorf("unknown format %q (valid: %s)", f.format, strings.Join(reportFormats, ", "))
	}
	return cfg.Validate()
}

func runProvision(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *provisionFlagValues, args []string) error {
	ctx := cmd.Context()
	sess, err := app.newSession(ctx, rootFlags)
	if err != nil {
		return err
	}
	if err := flags.apply(sess.cfg); err != nil {
		return usage(err)
	}

	res := sess.loadManifest(sess.cfg.ManifestPath())
	if len(args) > 0 {
		ids := make([]manifest.RepositoryID, len(args))
		for i, a := range args {
			ids[i] = manifest.RepositoryID(a)
		}
		var unknown []manifest.RepositoryID
		res.Manifest, unknown = res.Manifest.Select(ids...)
		if len(unknown) > 0 {
			return usage(issue.NewErrorContext().
				WithOperation("select repositories").
				WithResource(res.Manifest.Path).
				WithSuggestion("Run 'workspace manifest' to list declared repositories").
				Wrap(fmt.Errorf("not declared: %s", joinIDs(unknown))).
				BuildError())
		}
	}

	report, err := provisionOnce(ctx, app, sess, res, flags.progress)
	return finishRun(app, report, err, flags.format)
}

// provisionOnce runs the orchestrator over res, optionally drawing a progress
// bar. On interruption the partial report is returned with the error.
func provisionOnce(ctx context.Context, app *App, sess *session, res manifest.LoadResult, progress bool) (*workspace.Report, error) {
	var opts []workspace.Option
	if n := res.Manifest.Len(); progress && n > 0 {
		bar := newProgressBar(app.stderr, n)
		var mu sync.Mutex
		opts = append(opts, workspace.WithProgress(func(item workspace.ItemResult) {
			mu.Lock()
			defer mu.Unlock()
			bar.Describe(fmt.Sprintf("%s %s", item.ID, item.Outcome))
			_ = bar.Add(1) // rendering errors only affect the bar
		}))
		defer func() { _ = bar.Finish() }()
	}

	orch, store, err := sess.newOrchestrator(opts...)
	if err != nil {
		return nil, err
	}
	defer sess.closeStore(store)

	report, err := orch.RunLoaded(ctx, res)
	if err != nil {
		return report, fmt.Errorf("provisioning interrupted: %w", err)
	}
	return report, nil
}

// finishRun renders whatever report a pass produced, then returns runErr if
// the pass was cut short, or the report's own outcome otherwise.
func finishRun(app *App, report *workspace.Report, runErr error, format string) error {
	if runErr == nil {
		return finishReport(app, report, format)
	}
	if report != nil {
		if err := renderReport(app.stdout, report, format); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

// finishReport renders report and maps its outcome onto the exit code.
func finishReport(app *App, report *workspace.Report, format string) error {
	if err := renderReport(app.stdout, report, format); err != nil {
		return err
	}
	if format == formatText {
		hintFor(app, report)
	}
	if !report.Passed() {
		_, failedCount, _ := report.Counts()
		if failedCount == 0 {
			return failed("library check failed")
		}
		return failed("%d of %d repositories failed", failedCount, len(report.Items))
	}
	return nil
}

// hintFor prints catalog guidance for the most relevant problem in report.
func hintFor(app *App, report *workspace.Report) {
	// Items are only skipped when no fetch mechanism is usable.
	if _, _, skipped := report.Counts(); skipped > 0 && skipped == len(report.Items) {
		app.renderIssue(issue.FetcherUnavailableId)
		return
	}
	if lib := report.Library; lib != nil && lib.Outcome == workspace.OutcomeFailed && lib.Validation == nil {
		app.renderIssue(issue.LibraryMissingId)
	}
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("provisioning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func joinIDs(ids []manifest.RepositoryID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
