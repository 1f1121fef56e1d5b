// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fabriclabs/workspace/internal/clone"
	"github.com/fabriclabs/workspace/internal/config"
	"github.com/fabriclabs/workspace/internal/logging"
	"github.com/fabriclabs/workspace/internal/probe"
	"github.com/fabriclabs/workspace/internal/provenance"
	"github.com/fabriclabs/workspace/internal/structure"
	"github.com/fabriclabs/workspace/internal/workspace"
	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App wires CLI services and shared dependencies.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		configPath string
		root       string
		logLevel   string
		logFormat  string
		verbose    bool
	}

	// session is the per-invocation state derived from config and flags.
	session struct {
		cfg    *config.Config
		logger *slog.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// loadOptions turns the root flags into config.LoadOptions.
func (f *rootFlagValues) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: types.FilesystemPath(f.configPath)}
}

// newSession loads configuration, applies flag overrides and builds the logger.
func (a *App) newSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, flags.loadOptions())
	if err != nil {
		return nil, usage(err)
	}
	if flags.root != "" {
		cfg.Root = flags.root
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = config.LogFormat(flags.logFormat)
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(a.stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: string(cfg.Log.Format),
		Prefix: config.AppName,
	})
	if err != nil {
		return nil, usage(err)
	}
	return &session{cfg: cfg, logger: logger}, nil
}

// loadManifest loads the manifest at path and logs each diagnostic.
func (s *session) loadManifest(path string) manifest.LoadResult {
	res := manifest.Load(path)
	for _, d := range res.Diagnostics {
		s.logger.Warn(d.Message, "code", d.Code, "path", d.Path)
	}
	return res
}

// validationOptions maps the validation section onto structure.Options.
func (s *session) validationOptions() structure.Options {
	opts := structure.DefaultOptions()
	opts.Descriptor = s.cfg.Validation.Descriptor
	opts.DefaultEntryPoint = s.cfg.Validation.EntryPoint
	opts.Directories = s.cfg.Validation.Directories
	return opts
}

// openStore opens the configured provenance backend. Initialization failures
// come back as an Unavailable store, never as an error.
func (s *session) openStore() (provenance.Store, error) {
	return provenance.Open(provenance.Options{
		Backend: s.cfg.Provenance.Backend,
		Path:    s.cfg.ProvenancePath(),
		Logger:  s.logger,
	})
}

// newOrchestrator builds the fetcher, clone manager, recorder and inspector
// from config. The returned store must be closed by the caller.
func (s *session) newOrchestrator(opts ...workspace.Option) (*workspace.Orchestrator, provenance.Store, error) {
	fetcher, err := clone.NewFetcher(s.cfg.Clone.Backend)
	if err != nil {
		return nil, nil, usage(err)
	}
	if err := os.MkdirAll(s.cfg.StoresPath(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create stores directory: %w", err)
	}
	if err := os.MkdirAll(s.cfg.RepositoriesPath(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create repositories directory: %w", err)
	}
	clones := clone.NewManager(fetcher,
		clone.WithDescriptor(s.cfg.Validation.Descriptor),
		clone.WithLogger(s.logger),
	)

	store, err := s.openStore()
	if err != nil {
		return nil, nil, usage(err)
	}
	recorder := provenance.NewRecorder(store,
		provenance.WithRecorderLogger(s.logger),
		provenance.WithClock(time.Now),
	)

	wcfg := workspace.Config{
		Root:        types.FilesystemPath(s.cfg.RepositoriesPath()),
		Validation:  s.validationOptions(),
		Concurrency: s.cfg.Clone.Concurrency,
		Timeout:     s.cfg.TimeoutDuration(),
	}
	if lib := s.cfg.LibraryPath(); lib != "" {
		wcfg.Library = &workspace.LibraryConfig{
			Path:        types.FilesystemPath(lib),
			Name:        s.cfg.Library.Name,
			Directories: s.cfg.Library.Directories,
			Required:    s.cfg.Library.Required,
			Probe:       s.cfg.Library.Probe,
			Surface:     probe.FabricSurface(),
		}
	}

	opts = append([]workspace.Option{
		workspace.WithLogger(s.logger),
		workspace.WithInspector(&probe.NodeInspector{Binary: s.cfg.Library.Runtime}),
	}, opts...)
	return workspace.New(wcfg, clones, recorder, opts...), store, nil
}

// closeStore closes store, logging rather than returning the error.
func (s *session) closeStore(store provenance.Store) {
	if err := store.Close(); err != nil {
		s.logger.Warn("close provenance store", "backend", store.Name(), "error", err)
	}
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
