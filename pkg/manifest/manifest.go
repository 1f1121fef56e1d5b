// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

const (
	// RepositorySuffix is appended to a RepositoryID to form both the clone
	// directory name and the provenance record key.
	RepositorySuffix = "-repository"

	// SeverityWarning marks a recoverable loading problem.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks an informational loading note.
	SeverityInfo Severity = "info"

	// CodeNotFound is reported when the manifest file does not exist.
	CodeNotFound = "manifest_not_found"
	// CodeUnreadable is reported when the manifest file cannot be read.
	CodeUnreadable = "manifest_unreadable"
	// CodeInvalid is reported when the manifest does not parse or match the schema.
	CodeInvalid = "manifest_invalid"
	// CodeEntrySkipped is reported for each malformed repository entry.
	CodeEntrySkipped = "manifest_entry_skipped"
)

var (
	// ErrInvalidRepositoryID is the sentinel error wrapped by InvalidRepositoryIDError.
	ErrInvalidRepositoryID = errors.New("invalid repository id")
	// ErrInvalidLocator is the sentinel error wrapped by InvalidLocatorError.
	ErrInvalidLocator = errors.New("invalid locator")

	repositoryIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type (
	// RepositoryID is the stable short key naming one declared repository
	// across the manifest, the clone directory and the provenance record.
	RepositoryID string

	// InvalidRepositoryIDError is returned when a RepositoryID is empty or not
	// safe to use as a directory name.
	InvalidRepositoryIDError struct {
		Value RepositoryID
	}

	// Locator is a clone reference: an SSH-style address (git@host:org/repo.git),
	// a URL (https://, http://, ssh://, git://, file://) or an absolute local path.
	Locator string

	// InvalidLocatorError is returned when a Locator has no recognized form.
	InvalidLocatorError struct {
		Value Locator
	}

	// Declaration is one manifest entry. It is immutable after load.
	Declaration struct {
		ID RepositoryID `json:"id"`
		// Link is the canonical (primary) locator, typically SSH.
		Link Locator `json:"link"`
		// HTTPSLink is the fetch-friendly (secondary) locator.
		HTTPSLink Locator `json:"httpsLink,omitempty"`
		// Name, when set, must equal the clone's package descriptor name.
		Name string `json:"name,omitempty"`
		// Directories are required top-level directories for this repository,
		// checked in addition to the configured defaults.
		Directories []string `json:"directories,omitempty"`
	}

	// Manifest is the validated set of declarations.
	Manifest struct {
		// Path is the file the manifest was loaded from.
		Path string
		// Repositories maps identities to their declarations.
		Repositories map[RepositoryID]Declaration
		// Skipped counts malformed entries that were dropped during load.
		Skipped int
	}

	// Severity grades a Diagnostic.
	Severity string

	// Diagnostic is a structured, non-fatal loading problem returned to the
	// caller instead of being logged.
	Diagnostic struct {
		Severity Severity `json:"severity"`
		Code     string   `json:"code"`
		Message  string   `json:"message"`
		Path     string   `json:"path,omitempty"`
		Cause    error    `json:"-"`
	}

	// LoadResult bundles the loaded manifest with diagnostics. Manifest is never nil.
	LoadResult struct {
		Manifest    *Manifest
		Diagnostics []Diagnostic
	}
)

// String returns the string representation of the RepositoryID.
func (id RepositoryID) String() string { return string(id) }

// Validate returns nil if the identity is non-empty and filesystem-safe.
func (id RepositoryID) Validate() error {
	s := string(id)
	if !repositoryIDPattern.MatchString(s) || s == "." || s == ".." {
		return &InvalidRepositoryIDError{Value: id}
	}
	return nil
}

// InstanceName returns the identity with RepositorySuffix, e.g. "demo-repository".
func (id RepositoryID) InstanceName() string { return string(id) + RepositorySuffix }

// Error implements the error interface.
func (e *InvalidRepositoryIDError) Error() string {
	return fmt.Sprintf("invalid repository id %q (must start with a letter or digit and contain only letters, digits, '.', '_' or '-')", e.Value)
}

// Unwrap returns ErrInvalidRepositoryID for errors.Is() compatibility.
func (e *InvalidRepositoryIDError) Unwrap() error { return ErrInvalidRepositoryID }

// String returns the string representation of the Locator.
func (l Locator) String() string { return string(l) }

// Validate returns nil if the locator has a recognized form.
func (l Locator) Validate() error {
	s := string(l)
	if strings.TrimSpace(s) != s || s == "" {
		return &InvalidLocatorError{Value: l}
	}
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return nil
		}
	}
	if filepath.IsAbs(s) {
		return nil
	}
	return &InvalidLocatorError{Value: l}
}

// IsSSH reports whether the locator needs SSH transport.
func (l Locator) IsSSH() bool {
	s := string(l)
	return strings.HasPrefix(s, "git@") || strings.HasPrefix(s, "ssh://")
}

// Error implements the error interface.
func (e *InvalidLocatorError) Error() string {
	return fmt.Sprintf("invalid locator %q (must be a git@ address, a https/http/ssh/git/file URL or an absolute path)", e.Value)
}

// Unwrap returns ErrInvalidLocator for errors.Is() compatibility.
func (e *InvalidLocatorError) Unwrap() error { return ErrInvalidLocator }

// FetchLocator returns the locator used to clone: the secondary (HTTPS)
// locator when declared, otherwise the primary one.
func (d Declaration) FetchLocator() Locator {
	if d.HTTPSLink != "" {
		return d.HTTPSLink
	}
	return d.Link
}

// Empty returns a manifest with no declarations.
func Empty(path string) *Manifest {
	return &Manifest{Path: path, Repositories: map[RepositoryID]Declaration{}}
}

// Len returns the number of declarations.
func (m *Manifest) Len() int { return len(m.Repositories) }

// IDs returns the declared identities in sorted order.
func (m *Manifest) IDs() []RepositoryID {
	ids := make([]RepositoryID, 0, len(m.Repositories))
	for id := range m.Repositories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Get returns the declaration for id.
func (m *Manifest) Get(id RepositoryID) (Declaration, bool) {
	d, ok := m.Repositories[id]
	return d, ok
}

// Select returns a manifest restricted to ids, plus the ids that are not
// declared. An empty ids slice selects everything.
func (m *Manifest) Select(ids ...RepositoryID) (*Manifest, []RepositoryID) {
	if len(ids) == 0 {
		return m, nil
	}
	out := &Manifest{Path: m.Path, Repositories: make(map[RepositoryID]Declaration, len(ids)), Skipped: m.Skipped}
	var unknown []RepositoryID
	for _, id := range ids {
		d, ok := m.Repositories[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out.Repositories[id] = d
	}
	return out, unknown
}

// Error formats the diagnostic for display.
func (d Diagnostic) Error() string {
	if d.Path != "" {
		return fmt.Sprintf("%s: %s", d.Path, d.Message)
	}
	return d.Message
}
