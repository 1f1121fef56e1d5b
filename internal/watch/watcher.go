// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when the workspace inputs change.
//
// A Watcher follows a fixed set of files, typically the manifest and the
// config file, by watching their parent directories non-recursively. Events
// inside the debounce window are coalesced into one callback carrying every
// changed path. Clone directories are never watched, so a provisioning run
// cannot retrigger itself.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce lets an editor's write-then-rename settle into one event.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are matched against base names and cover editor swap files.
var defaultIgnores = []string{
	"*.swp",
	"*.swo",
	"*~",
	".#*",
	".DS_Store",
}

var (
	// ErrNoTargets is returned by New when neither Files nor Patterns are given.
	ErrNoTargets = errors.New("watch: nothing to watch")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files are watched individually. They need not exist yet, but their
		// parent directory must.
		Files []string

		// Dirs are watched non-recursively for base names matching Patterns.
		Dirs []string
		// Patterns are doublestar globs matched against base names inside Dirs,
		// e.g. "*.cue".
		Patterns []string

		// Ignore extends the default swap-file ignores. Matched against base names.
		Ignore []string

		// Debounce falls back to defaultDebounce when zero or negative.
		Debounce time.Duration

		// OnChange receives the deduplicated, sorted list of changed paths.
		OnChange func(ctx context.Context, changed []string) error

		Logger *slog.Logger
	}

	// Watcher fires a debounced callback when watched inputs change.
	// Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		files    map[string]struct{}
		dirs     map[string]struct{}
		ignores  []string
		debounce time.Duration
		logger   *slog.Logger
		started  atomic.Bool
	}
)

// New validates cfg, resolves every path to an absolute one and registers the
// parent directories with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Files) == 0 && len(cfg.Dirs) == 0 {
		return nil, ErrNoTargets
	}
	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:      cfg,
		files:    make(map[string]struct{}, len(cfg.Files)),
		dirs:     make(map[string]struct{}, len(cfg.Dirs)),
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		w.files[abs] = struct{}{}
	}
	for _, d := range cfg.Dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", d, err)
		}
		w.dirs[abs] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	for _, dir := range w.watchedDirs() {
		if err := fsw.Add(dir); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				w.logger.Warn("close watcher after init failure", "error", closeErr)
			}
			return nil, fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
	}

	return w, nil
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when fsnotify fails in a way the watcher cannot recover from.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after cancellation because it is scheduled by AfterFunc.
	// A callback still in progress causes a retry rather than a second
	// concurrent invocation.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("change handler failed", "error", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(evt.Name) {
				continue
			}
			w.logger.Debug("input changed", "path", evt.Name, "op", evt.Op.String())

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// relevant reports whether an event path is one of the watched files or a
// pattern match inside a watched directory.
func (w *Watcher) relevant(name string) bool {
	abs := filepath.Clean(name)
	base := filepath.Base(abs)
	if matchAny(w.ignores, base) {
		return false
	}
	if _, ok := w.files[abs]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(abs)]; !ok {
		return false
	}
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, base)
}

func (w *Watcher) watchedDirs() []string {
	set := maps.Clone(w.dirs)
	for f := range w.files {
		set[filepath.Dir(f)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
