// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fabriclabs/workspace/internal/clone"
	"github.com/fabriclabs/workspace/internal/provenance"
	"github.com/fabriclabs/workspace/internal/structure"
	"github.com/fabriclabs/workspace/internal/testutil"
	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"
)

// repoFetcher materializes fixtures keyed by repository ID instead of
// cloning. IDs without a fixture fail like an unreachable remote.
type repoFetcher struct {
	t        testing.TB
	fixtures map[manifest.RepositoryID]testutil.RepoFixture
	block    bool

	availableCalls atomic.Int32
	active         atomic.Int32
	maxActive      atomic.Int32
}

func (f *repoFetcher) Name() string { return "fixture" }

func (f *repoFetcher) Available() error {
	f.availableCalls.Add(1)
	return nil
}

func (f *repoFetcher) Clone(ctx context.Context, _ manifest.Locator, dest string) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	// Give overlapping clones a chance to be observed.
	time.Sleep(5 * time.Millisecond)

	id := manifest.RepositoryID(strings.TrimSuffix(filepath.Base(dest), manifest.RepositorySuffix))
	fx, ok := f.fixtures[id]
	if !ok {
		return errors.New("repository not found")
	}
	testutil.WriteRepo(f.t, dest, fx)
	testutil.InitGitRepo(f.t, dest)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func goodRepo() testutil.RepoFixture {
	return testutil.RepoFixture{Name: "demo", EntryPoint: "index.js"}
}

func manifestOf(decls ...manifest.Declaration) *manifest.Manifest {
	m := manifest.Empty("stores/meta.json")
	for _, d := range decls {
		m.Repositories[d.ID] = d
	}
	return m
}

func decl(id string) manifest.Declaration {
	return manifest.Declaration{
		ID:        manifest.RepositoryID(id),
		Link:      manifest.Locator("git@example:" + id + ".git"),
		HTTPSLink: manifest.Locator("https://example/" + id + ".git"),
	}
}

func newTestOrchestrator(t *testing.T, fetcher clone.Fetcher, store provenance.Store, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = types.FilesystemPath(filepath.Join(t.TempDir(), "stores", "repositories"))
	}
	if cfg.Validation.Descriptor == "" {
		cfg.Validation = structure.DefaultOptions()
	}
	return New(cfg, clone.NewManager(fetcher), provenance.NewRecorder(store), opts...)
}

// One declared repository whose clone has a descriptor, an entry point and
// version-control metadata passes and is recorded.
func TestRun_SingleRepositoryPasses(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"demo": goodRepo()}}
	store := provenance.NewMemoryStore()
	o := newTestOrchestrator(t, fetcher, store, Config{})

	report, err := o.Run(context.Background(), manifestOf(decl("demo")))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("Run() report failed: %+v", report.Items)
	}
	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", report.RunID, err)
	}

	item, ok := report.Item("demo")
	if !ok || item.Outcome != OutcomePassed {
		t.Fatalf("demo = %+v, want passed", item)
	}
	if item.Provenance != provenance.StatusRecorded {
		t.Errorf("Provenance = %q, want recorded", item.Provenance)
	}
	if filepath.Base(item.Path) != "demo-repository" {
		t.Errorf("Path = %q, want .../demo-repository", item.Path)
	}

	rec, found, err := store.Get(context.Background(), "demo-repository")
	if err != nil || !found {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Link != "git@example:demo.git" || !rec.Cloned || rec.Path != item.Path {
		t.Errorf("record = %+v", rec)
	}
	if rec.Commit != item.Commit || item.Commit == "" {
		t.Errorf("record commit %q, item commit %q", rec.Commit, item.Commit)
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	root := types.FilesystemPath(filepath.Join(t.TempDir(), "repositories"))
	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"demo": goodRepo()}}
	store := provenance.NewMemoryStore()
	o := newTestOrchestrator(t, fetcher, store, Config{Root: root})
	m := manifestOf(decl("demo"))

	first, err := o.Run(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Run(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}

	if first.Items[0].Outcome != second.Items[0].Outcome || first.Items[0].Path != second.Items[0].Path {
		t.Errorf("runs differ: %+v vs %+v", first.Items[0], second.Items[0])
	}
	if first.RunID == second.RunID {
		t.Error("each run should get its own ID")
	}
	entries, err := os.ReadDir(string(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("root holds %d entries after two runs, want 1", len(entries))
	}
	keys, _ := store.Keys(context.Background())
	if !slices.Equal(keys, []string{"demo-repository"}) {
		t.Errorf("store keys = %v", keys)
	}
}

func TestRun_StoreUnavailableStillPasses(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"demo": goodRepo()}}
	o := newTestOrchestrator(t, fetcher, &provenance.Unavailable{Backend: provenance.BackendSQLite, Reason: "driver missing"}, Config{})

	report, err := o.Run(context.Background(), manifestOf(decl("demo")))
	if err != nil {
		t.Fatal(err)
	}
	item := report.Items[0]
	if item.Outcome != OutcomePassed || item.Provenance != provenance.StatusNotRecorded {
		t.Errorf("item = %+v, want passed and not recorded", item)
	}
}

type failingStore struct{ *provenance.MemoryStore }

func (failingStore) Put(context.Context, string, provenance.Record) error {
	return errors.New("database is locked")
}

func TestRun_UnexpectedStoreErrorFailsItem(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"demo": goodRepo()}}
	o := newTestOrchestrator(t, fetcher, failingStore{provenance.NewMemoryStore()}, Config{})

	report, err := o.Run(context.Background(), manifestOf(decl("demo")))
	if err != nil {
		t.Fatal(err)
	}
	item := report.Items[0]
	if item.Outcome != OutcomeFailed || !strings.Contains(item.Reason, "database is locked") {
		t.Errorf("item = %+v, want failed with the store error", item)
	}
}

func TestRun_FetchUnavailableSkipsAll(t *testing.T) {
	t.Parallel()

	store := provenance.NewMemoryStore()
	o := newTestOrchestrator(t, &clone.UnavailableFetcher{Backend: clone.BackendNone, Reason: "offline"}, store, Config{})

	report, err := o.Run(context.Background(), manifestOf(decl("a"), decl("b")))
	if err != nil {
		t.Fatal(err)
	}
	_, failed, skipped := report.Counts()
	if skipped != 2 || failed != 0 {
		t.Errorf("Counts() skipped=%d failed=%d, want 2 and 0", skipped, failed)
	}
	if !report.Passed() {
		t.Error("skipped items must not fail the run")
	}
	if keys, _ := store.Keys(context.Background()); len(keys) != 0 {
		t.Errorf("skipped items recorded provenance: %v", keys)
	}
}

func TestRun_AvailabilityCheckedOnce(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{
		"a": goodRepo(), "b": goodRepo(), "c": goodRepo(),
	}}
	o := newTestOrchestrator(t, fetcher, provenance.NewMemoryStore(), Config{})

	if _, err := o.Run(context.Background(), manifestOf(decl("a"), decl("b"), decl("c"))); err != nil {
		t.Fatal(err)
	}
	// Once by the orchestrator and once per Provision call.
	if got := fetcher.availableCalls.Load(); got != 4 {
		t.Errorf("Available() calls = %d, want 4", got)
	}
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{
		"good":      goodRepo(),
		"noentry":   {Name: "noentry"},
		"wrongname": {Name: "other", EntryPoint: "index.js"},
		"nodirs":    goodRepo(),
	}}
	store := provenance.NewMemoryStore()
	o := newTestOrchestrator(t, fetcher, store, Config{})

	wrongName := decl("wrongname")
	wrongName.Name = "wrongname"
	noDirs := decl("nodirs")
	noDirs.Directories = []string{"types"}

	report, err := o.Run(context.Background(), manifestOf(decl("good"), decl("noentry"), decl("unreachable"), wrongName, noDirs))
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed() {
		t.Fatal("report passed, want failure")
	}

	gotIDs := make([]manifest.RepositoryID, 0, len(report.Items))
	for _, item := range report.Items {
		gotIDs = append(gotIDs, item.ID)
	}
	if !slices.Equal(gotIDs, []manifest.RepositoryID{"good", "nodirs", "noentry", "unreachable", "wrongname"}) {
		t.Errorf("items not sorted by ID: %v", gotIDs)
	}

	want := map[manifest.RepositoryID][]string{
		"good":        nil,
		"nodirs":      {"types/"},
		"noentry":     {"index.js"},
		"unreachable": nil,
		"wrongname":   {"package.json#name"},
	}
	for _, item := range report.Items {
		if item.ID == "good" {
			if item.Outcome != OutcomePassed {
				t.Errorf("good = %+v, want passed", item)
			}
			continue
		}
		if item.Outcome != OutcomeFailed {
			t.Errorf("%s = %q, want failed", item.ID, item.Outcome)
		}
		if !slices.Equal(item.FailedArtifacts, want[item.ID]) {
			t.Errorf("%s FailedArtifacts = %v, want %v", item.ID, item.FailedArtifacts, want[item.ID])
		}
	}

	keys, _ := store.Keys(context.Background())
	if !slices.Equal(keys, []string{"good-repository"}) {
		t.Errorf("only validated repositories may be recorded, got %v", keys)
	}
}

func TestRun_TimeoutLeavesNoPartialClone(t *testing.T) {
	t.Parallel()

	root := types.FilesystemPath(filepath.Join(t.TempDir(), "repositories"))
	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"slow": goodRepo()}, block: true}
	o := newTestOrchestrator(t, fetcher, provenance.NewMemoryStore(), Config{Root: root, Timeout: 50 * time.Millisecond})

	report, err := o.Run(context.Background(), manifestOf(decl("slow")))
	if err != nil {
		t.Fatal(err)
	}
	item := report.Items[0]
	if item.Outcome != OutcomeFailed || !strings.Contains(item.Reason, context.DeadlineExceeded.Error()) {
		t.Errorf("item = %+v, want failed by deadline", item)
	}
	if root.Join("slow-repository").Exists() {
		t.Error("timed-out clone left a partial directory")
	}
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	t.Parallel()

	fixtures := map[manifest.RepositoryID]testutil.RepoFixture{}
	var decls []manifest.Declaration
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		fixtures[manifest.RepositoryID(id)] = goodRepo()
		decls = append(decls, decl(id))
	}
	fetcher := &repoFetcher{t: t, fixtures: fixtures}

	var mu sync.Mutex
	var progressed []manifest.RepositoryID
	o := newTestOrchestrator(t, fetcher, provenance.NewMemoryStore(), Config{Concurrency: 2},
		WithProgress(func(item ItemResult) {
			mu.Lock()
			defer mu.Unlock()
			progressed = append(progressed, item.ID)
		}))

	report, err := o.Run(context.Background(), manifestOf(decls...))
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed() {
		t.Fatalf("report failed: %+v", report.Items)
	}
	if got := fetcher.maxActive.Load(); got > 2 {
		t.Errorf("max concurrent clones = %d, want <= 2", got)
	}
	if len(progressed) != len(decls) {
		t.Errorf("progress callbacks = %d, want %d", len(progressed), len(decls))
	}
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	fetcher := &repoFetcher{t: t, fixtures: map[manifest.RepositoryID]testutil.RepoFixture{"demo": goodRepo()}}
	o := newTestOrchestrator(t, fetcher, provenance.NewMemoryStore(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, manifestOf(decl("demo")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if report == nil || report.Items[0].Outcome != OutcomeFailed {
		t.Errorf("report = %+v, want the item failed", report)
	}
}

func TestRun_ManifestSkippedCountCarried(t *testing.T) {
	t.Parallel()

	m := manifestOf()
	m.Skipped = 3
	o := newTestOrchestrator(t, &repoFetcher{t: t}, provenance.NewMemoryStore(), Config{})

	report, err := o.Run(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if report.ManifestSkipped != 3 || len(report.Items) != 0 || !report.Passed() {
		t.Errorf("report = %+v", report)
	}
}

func TestRunLoaded_CarriesDiagnostics(t *testing.T) {
	t.Parallel()

	m := manifestOf()
	m.Skipped = 1
	res := manifest.LoadResult{
		Manifest: m,
		Diagnostics: []manifest.Diagnostic{{
			Severity: manifest.SeverityWarning,
			Code:     manifest.CodeEntrySkipped,
			Message:  `skipping repository "broken"`,
			Path:     "meta.json",
		}},
	}
	o := newTestOrchestrator(t, &repoFetcher{t: t}, provenance.NewMemoryStore(), Config{})

	report, err := o.RunLoaded(context.Background(), res)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Diagnostics) != 1 || report.Diagnostics[0].Code != manifest.CodeEntrySkipped {
		t.Fatalf("Diagnostics = %+v, want the invalid entry", report.Diagnostics)
	}
	if !report.Passed() {
		t.Error("diagnostics must not fail the run")
	}

	res.Diagnostics[0].Message = "changed"
	if report.Diagnostics[0].Message == "changed" {
		t.Error("report shares the diagnostics slice with the load result")
	}
}
