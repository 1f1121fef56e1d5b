// SPDX-License-Identifier: MPL-2.0

package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/fabriclabs/workspace/pkg/descriptor"
	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"
)

// vcsMarker is the version-control metadata entry every clone must contain.
const vcsMarker = ".git"

type (
	// ProvisionedClone describes a materialized clone. Exists is only true
	// when both HasVCSMarker and HasDescriptor are true.
	ProvisionedClone struct {
		ID            manifest.RepositoryID `json:"id"`
		Path          types.FilesystemPath  `json:"path"`
		Locator       manifest.Locator      `json:"locator"`
		Exists        bool                  `json:"exists"`
		HasVCSMarker  bool                  `json:"hasVcsMarker"`
		HasDescriptor bool                  `json:"hasDescriptor"`
		// Commit is the HEAD commit of the clone.
		Commit string `json:"commit,omitempty"`
	}

	// Manager provisions clones through a Fetcher.
	Manager struct {
		fetcher    Fetcher
		descriptor string
		logger     *slog.Logger
	}

	// Option configures a Manager.
	Option func(*Manager)
)

// WithDescriptor sets the descriptor file required in every clone.
// Defaults to package.json.
func WithDescriptor(name string) Option {
	return func(m *Manager) { m.descriptor = name }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager backed by fetcher.
func NewManager(fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		fetcher:    fetcher,
		descriptor: descriptor.FileName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fetcher returns the underlying fetcher.
func (m *Manager) Fetcher() Fetcher { return m.fetcher }

// Available returns nil when clones can be attempted, or an error wrapping
// ErrFetcherUnavailable. Callers check it once per run.
func (m *Manager) Available() error { return m.fetcher.Available() }

// PathFor returns the clone directory for id under root.
func PathFor(root types.FilesystemPath, id manifest.RepositoryID) types.FilesystemPath {
	return root.Join(id.InstanceName())
}

// Provision replaces any existing clone of decl under root with a fresh
// shallow clone of its fetch locator and verifies the result. On any error
// after the old directory was removed, the partial directory is removed too.
//
// Returned errors wrap ErrFetcherUnavailable, ErrCloneFailed or
// ErrNotMaterialized.
func (m *Manager) Provision(ctx context.Context, decl manifest.Declaration, root types.FilesystemPath) (*ProvisionedClone, error) {
	if err := decl.ID.Validate(); err != nil {
		return nil, &CloneError{ID: decl.ID, Locator: decl.FetchLocator(), Err: err}
	}
	if err := m.fetcher.Available(); err != nil {
		return nil, err
	}

	locator := decl.FetchLocator()
	path := PathFor(root, decl.ID)
	dest := string(path)
	logger := m.logger.With("repository", string(decl.ID), "path", dest)

	if err := os.MkdirAll(string(root), 0o755); err != nil {
		return nil, &CloneError{ID: decl.ID, Locator: locator, Err: fmt.Errorf("failed to create workspace root: %w", err)}
	}

	if _, err := os.Lstat(dest); err == nil {
		logger.Debug("removing existing clone")
	}
	if err := os.RemoveAll(dest); err != nil {
		return nil, &CloneError{ID: decl.ID, Locator: locator, Err: fmt.Errorf("failed to remove existing clone: %w", err)}
	}

	logger.Debug("cloning", "locator", string(locator), "fetcher", m.fetcher.Name())
	if err := m.fetcher.Clone(ctx, locator, dest); err != nil {
		m.discard(logger, dest)
		if errors.Is(err, ErrFetcherUnavailable) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, &CloneError{ID: decl.ID, Locator: locator, Err: err}
	}

	clone := m.inspect(decl, path, locator)
	if !clone.Exists {
		m.discard(logger, dest)
		return nil, &NotMaterializedError{ID: decl.ID, Path: path, Missing: missingMarkers(clone, m.descriptor)}
	}

	commit, err := headCommit(dest)
	if err != nil {
		m.discard(logger, dest)
		return nil, &NotMaterializedError{ID: decl.ID, Path: path, Missing: []string{"git repository (" + err.Error() + ")"}}
	}
	clone.Commit = commit

	logger.Debug("clone ready", "commit", commit)
	return clone, nil
}

// Inspect reports the markers present for id under root without modifying
// anything. It never returns an error; a missing directory yields
// Exists=false.
func (m *Manager) Inspect(decl manifest.Declaration, root types.FilesystemPath) *ProvisionedClone {
	path := PathFor(root, decl.ID)
	clone := m.inspect(decl, path, decl.FetchLocator())
	if clone.Exists {
		if commit, err := headCommit(string(path)); err == nil {
			clone.Commit = commit
		}
	}
	return clone
}

func (m *Manager) inspect(decl manifest.Declaration, path types.FilesystemPath, locator manifest.Locator) *ProvisionedClone {
	clone := &ProvisionedClone{ID: decl.ID, Path: path, Locator: locator}
	if !path.IsDir() {
		return clone
	}
	clone.HasVCSMarker = exists(filepath.Join(string(path), vcsMarker))
	clone.HasDescriptor = isFile(filepath.Join(string(path), m.descriptor))
	clone.Exists = clone.HasVCSMarker && clone.HasDescriptor
	return clone
}

func (m *Manager) discard(logger *slog.Logger, dest string) {
	if err := os.RemoveAll(dest); err != nil {
		logger.Warn("failed to remove partial clone", "error", err)
	}
}

func missingMarkers(c *ProvisionedClone, descriptorName string) []string {
	var missing []string
	if !c.HasVCSMarker {
		missing = append(missing, vcsMarker)
	}
	if !c.HasDescriptor {
		missing = append(missing, descriptorName)
	}
	if len(missing) == 0 {
		missing = append(missing, "directory")
	}
	return missing
}

// headCommit opens path as a git repository and returns its HEAD hash.
func headCommit(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
