// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fabriclabs/workspace/internal/logging"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func startWatcher(t *testing.T, cfg Config) context.CancelFunc {
	t.Helper()
	cfg.Logger = logging.Discard()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	return cancel
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitFired(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestWatcher_DebouncesManifestWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "meta.json")
	writeFile(t, manifest, `{}`)

	rec := newRecorder()
	startWatcher(t, Config{
		Files:    []string{manifest},
		Debounce: 100 * time.Millisecond,
		OnChange: rec.onChange,
	})

	for i := range 3 {
		writeFile(t, manifest, `{"repositories":{}}`+string(rune('0'+i)))
		time.Sleep(10 * time.Millisecond)
	}
	waitFired(t, rec)
	time.Sleep(250 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 debounced callback, got %d: %v", len(calls), calls)
	}
	if len(calls[0]) != 1 || calls[0][0] != manifest {
		t.Errorf("changed = %v, want [%s]", calls[0], manifest)
	}
}

func TestWatcher_IgnoresSiblingsAndSwapFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "meta.json")

	rec := newRecorder()
	startWatcher(t, Config{
		Files:    []string{manifest},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})

	writeFile(t, filepath.Join(dir, "provenance.db"), "x")
	writeFile(t, filepath.Join(dir, "meta.json.swp"), "x")
	time.Sleep(300 * time.Millisecond)
	if calls := rec.snapshot(); len(calls) != 0 {
		t.Fatalf("unrelated files triggered callbacks: %v", calls)
	}

	// A file created after startup is still picked up.
	writeFile(t, manifest, `{}`)
	waitFired(t, rec)
}

func TestWatcher_DirPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{
		Dirs:     []string{dir},
		Patterns: []string{"*.cue"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})

	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "workspace.cue"), `log: level: "debug"`)
	waitFired(t, rec)

	calls := rec.snapshot()
	if len(calls) != 1 || len(calls[0]) != 1 || filepath.Base(calls[0][0]) != "workspace.cue" {
		t.Errorf("calls = %v, want only workspace.cue", calls)
	}
}

func TestWatcher_SkipIfBusy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "meta.json")

	var (
		mu       sync.Mutex
		active   int
		maxAlive int
		calls    int
	)
	firstDone := make(chan struct{})

	startWatcher(t, Config{
		Files:    []string{manifest},
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			mu.Lock()
			active++
			calls++
			n := calls
			maxAlive = max(maxAlive, active)
			mu.Unlock()

			if n == 1 {
				time.Sleep(300 * time.Millisecond)
				close(firstDone)
			}

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		},
	})

	writeFile(t, manifest, "1")
	time.Sleep(100 * time.Millisecond)
	writeFile(t, manifest, "2")

	select {
	case <-firstDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first callback")
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxAlive != 1 {
		t.Errorf("callbacks overlapped: max concurrent = %d", maxAlive)
	}
	if calls < 1 || calls > 2 {
		t.Errorf("calls = %d, want 1 or 2", calls)
	}
}

func TestWatcher_DoubleRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(Config{Files: []string{filepath.Join(dir, "meta.json")}, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error: %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrNoTargets) {
		t.Errorf("New(empty) = %v, want ErrNoTargets", err)
	}
	if _, err := New(Config{Dirs: []string{t.TempDir()}, Patterns: []string{"[invalid"}}); err == nil {
		t.Error("New() with invalid pattern should fail")
	}
	if _, err := New(Config{Files: []string{filepath.Join(t.TempDir(), "missing", "meta.json")}}); err == nil {
		t.Error("New() with missing parent directory should fail")
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() should return a copy")
	}
	for _, name := range []string{"meta.json.swp", "workspace.cue~", ".#meta.json"} {
		if !matchAny(defaultIgnores, name) {
			t.Errorf("%q should be ignored by default", name)
		}
	}
	if matchAny(defaultIgnores, "meta.json") {
		t.Error("meta.json must not be ignored")
	}
}
