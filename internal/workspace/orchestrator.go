// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fabriclabs/workspace/internal/clone"
	"github.com/fabriclabs/workspace/internal/probe"
	"github.com/fabriclabs/workspace/internal/provenance"
	"github.com/fabriclabs/workspace/internal/structure"
	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"
)

const (
	// DefaultConcurrency bounds simultaneous work items.
	DefaultConcurrency = 4
	// DefaultTimeout bounds one repository's clone, validation and recording.
	DefaultTimeout = 30 * time.Second
)

type (
	// Config controls a run.
	Config struct {
		// Root is the directory clones are created under.
		Root types.FilesystemPath
		// Validation holds the structural checks applied to every clone.
		// Declaration name and directories are merged in per item.
		Validation  structure.Options
		Concurrency int
		Timeout     time.Duration
		// Library, when set, enables the external library check.
		Library *LibraryConfig
	}

	// LibraryConfig describes the external library checkout.
	LibraryConfig struct {
		Path        types.FilesystemPath
		Name        string
		Directories []string
		// Required turns a missing checkout into a failure.
		Required bool
		// Probe enables the capability probe.
		Probe   bool
		Surface probe.Surface
	}

	// Orchestrator runs provisioning over a manifest.
	Orchestrator struct {
		cfg       Config
		clones    *clone.Manager
		recorder  *provenance.Recorder
		inspector probe.Inspector
		logger    *slog.Logger
		now       func() time.Time
		onItem    func(ItemResult)
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)
)

// WithInspector sets the inspector used by the capability probe.
func WithInspector(inspector probe.Inspector) Option {
	return func(o *Orchestrator) { o.inspector = inspector }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock sets the time source for report timings.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithProgress registers fn to be called as each item completes. fn is
// called from worker goroutines and must be safe for concurrent use.
func WithProgress(fn func(ItemResult)) Option {
	return func(o *Orchestrator) { o.onItem = fn }
}

// New creates an Orchestrator. A nil recorder disables provenance.
func New(cfg Config, clones *clone.Manager, recorder *provenance.Recorder, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if recorder == nil {
		recorder = provenance.NewRecorder(&provenance.Unavailable{Backend: provenance.BackendNone, Reason: "no store configured"})
	}
	o := &Orchestrator{
		cfg:      cfg,
		clones:   clones,
		recorder: recorder,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run provisions every repository in m and checks the library. It returns an
// error only when the workspace root cannot be created or ctx is canceled;
// the report is returned in both cases when available.
func (o *Orchestrator) Run(ctx context.Context, m *manifest.Manifest) (*Report, error) {
	started := o.now()
	report := &Report{
		RunID:           uuid.NewString(),
		Root:            string(o.cfg.Root),
		Manifest:        m.Path,
		Started:         started,
		ManifestSkipped: m.Skipped,
	}
	logger := o.logger.With("run", report.RunID)

	if err := os.MkdirAll(string(o.cfg.Root), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", o.cfg.Root, err)
	}

	// Availability is decided once for the whole run.
	fetchErr := o.clones.Available()
	if fetchErr != nil {
		logger.Warn("fetching unavailable, repositories will be skipped", "reason", fetchErr)
	}

	ids := m.IDs()
	report.Items = make([]ItemResult, len(ids))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	for i, id := range ids {
		decl, _ := m.Get(id)
		g.Go(func() error {
			item := o.runItem(ctx, decl, fetchErr)
			report.Items[i] = item
			logger.Info("repository "+string(item.Outcome), "repository", string(id), "reason", item.Reason, "duration", item.Duration)
			if o.onItem != nil {
				o.onItem(item)
			}
			return nil
		})
	}

	if o.cfg.Library != nil {
		g.Go(func() error {
			report.Library = o.checkLibrary(ctx)
			logger.Info("library "+string(report.Library.Outcome), "path", report.Library.Path, "reason", report.Library.Reason)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // work items never return errors

	report.Duration = o.now().Sub(started)
	return report, ctx.Err()
}

// RunLoaded runs over res.Manifest and attaches res.Diagnostics to the report.
func (o *Orchestrator) RunLoaded(ctx context.Context, res manifest.LoadResult) (*Report, error) {
	report, err := o.Run(ctx, res.Manifest)
	if report != nil && len(res.Diagnostics) > 0 {
		report.Diagnostics = slices.Clone(res.Diagnostics)
	}
	return report, err
}

func (o *Orchestrator) runItem(ctx context.Context, decl manifest.Declaration, fetchErr error) ItemResult {
	start := o.now()
	item := ItemResult{ID: decl.ID}

	finish := func(outcome Outcome, reason string) ItemResult {
		item.Outcome = outcome
		item.Reason = reason
		item.Duration = o.now().Sub(start)
		return item
	}

	if fetchErr != nil {
		return finish(OutcomeSkipped, fetchErr.Error())
	}
	if err := ctx.Err(); err != nil {
		return finish(OutcomeFailed, err.Error())
	}

	itemCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	c, err := o.clones.Provision(itemCtx, decl, o.cfg.Root)
	switch {
	case errors.Is(err, clone.ErrFetcherUnavailable):
		return finish(OutcomeSkipped, err.Error())
	case err != nil:
		return finish(OutcomeFailed, err.Error())
	}
	item.Path = string(c.Path)
	item.Commit = c.Commit

	result, err := structure.Validate(c.Path, o.cfg.Validation.With(decl.Name, decl.Directories))
	if err != nil {
		return finish(OutcomeFailed, err.Error())
	}
	item.Validation = result
	if !result.Passed() {
		item.FailedArtifacts = result.FailedArtifacts()
		return finish(OutcomeFailed, "structural validation failed: "+result.String())
	}

	status, err := o.recorder.Record(itemCtx, c, decl)
	if err != nil {
		return finish(OutcomeFailed, "failed to record provenance: "+err.Error())
	}
	item.Provenance = status

	return finish(OutcomePassed, "")
}
