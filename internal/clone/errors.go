// SPDX-License-Identifier: MPL-2.0

package clone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"
)

var (
	// ErrFetcherUnavailable is the sentinel error wrapped by FetcherUnavailableError.
	// It signals that clone infrastructure is missing, not that a clone failed.
	ErrFetcherUnavailable = errors.New("fetcher unavailable")

	// ErrCloneFailed is the sentinel error wrapped by CloneError.
	ErrCloneFailed = errors.New("clone failed")

	// ErrNotMaterialized is the sentinel error wrapped by NotMaterializedError.
	ErrNotMaterialized = errors.New("clone not materialized")

	// ErrUnknownBackend is returned by NewFetcher for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown fetch backend")
)

type (
	// FetcherUnavailableError reports that a fetch backend cannot be used.
	FetcherUnavailableError struct {
		Fetcher string
		Reason  string
	}

	// CloneError reports a failed clone attempt. Err holds the underlying
	// transport, process or context error.
	CloneError struct {
		ID      manifest.RepositoryID
		Locator manifest.Locator
		Err     error
	}

	// NotMaterializedError reports a clone that completed but lacks a
	// required marker. The directory has already been removed.
	NotMaterializedError struct {
		ID      manifest.RepositoryID
		Path    types.FilesystemPath
		Missing []string
	}
)

// Error implements the error interface.
func (e *FetcherUnavailableError) Error() string {
	return fmt.Sprintf("fetcher %q unavailable: %s", e.Fetcher, e.Reason)
}

// Unwrap returns ErrFetcherUnavailable for errors.Is() compatibility.
func (e *FetcherUnavailableError) Unwrap() error { return ErrFetcherUnavailable }

// Error implements the error interface.
func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s from %s: %v", e.ID, e.Locator, e.Err)
}

// Unwrap returns both ErrCloneFailed and the underlying cause, so
// errors.Is(err, context.DeadlineExceeded) also works.
func (e *CloneError) Unwrap() []error { return []error{ErrCloneFailed, e.Err} }

// Error implements the error interface.
func (e *NotMaterializedError) Error() string {
	return fmt.Sprintf("clone of %s at %s is missing %s", e.ID, e.Path, strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrNotMaterialized for errors.Is() compatibility.
func (e *NotMaterializedError) Unwrap() error { return ErrNotMaterialized }
