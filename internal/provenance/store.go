// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fabriclabs/workspace/pkg/manifest"
)

const (
	// BackendSQLite persists records in a SQLite database file.
	BackendSQLite = "sqlite"
	// BackendMemory keeps records in process memory.
	BackendMemory = "memory"
	// BackendNone disables provenance recording.
	BackendNone = "none"
)

var (
	// ErrUnavailable is the sentinel error wrapped by UnavailableError.
	ErrUnavailable = errors.New("provenance store unavailable")

	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown provenance backend")
)

type (
	// Record is the provenance stored per repository. The JSON shape is
	// {link, httpsLink, cloned, path, timestamp} with timestamp in epoch
	// milliseconds.
	Record struct {
		Link      manifest.Locator `json:"link"`
		HTTPSLink manifest.Locator `json:"httpsLink"`
		Cloned    bool             `json:"cloned"`
		Path      string           `json:"path"`
		Timestamp int64            `json:"timestamp"`
		Commit    string           `json:"commit,omitempty"`
	}

	// Store is a key-value store of provenance records. Put overwrites any
	// existing record for the key.
	Store interface {
		Name() string
		// Available returns nil, or an error wrapping ErrUnavailable.
		Available() error
		Put(ctx context.Context, key string, rec Record) error
		// Get returns false when no record exists for key.
		Get(ctx context.Context, key string) (Record, bool, error)
		// Keys returns every stored key in sorted order.
		Keys(ctx context.Context) ([]string, error)
		Close() error
	}

	// Options selects and configures a backend.
	Options struct {
		Backend string
		// Path is the SQLite database file.
		Path   string
		Logger *slog.Logger
	}

	// UnavailableError reports a store that cannot be used.
	UnavailableError struct {
		Backend string
		Reason  string
	}

	// Unavailable is a Store whose every operation fails with UnavailableError.
	Unavailable struct {
		Backend string
		Reason  string
	}
)

// KeyFor returns the record key for id, e.g. "demo-repository".
func KeyFor(id manifest.RepositoryID) string { return id.InstanceName() }

// Open initializes the configured backend. Initialization failures are not
// returned: they produce an Unavailable store so callers degrade gracefully.
// Only an unknown backend name is an error.
func Open(opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "", BackendSQLite:
		store, err := OpenSQLite(opts.Path)
		if err != nil {
			logger.Debug("provenance store unavailable", "backend", BackendSQLite, "path", opts.Path, "error", err)
			return &Unavailable{Backend: BackendSQLite, Reason: err.Error()}, nil
		}
		return store, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendNone:
		return &Unavailable{Backend: BackendNone, Reason: "recording disabled"}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, %s or %s)", ErrUnknownBackend, opts.Backend, BackendSQLite, BackendMemory, BackendNone)
	}
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provenance store %q unavailable: %s", e.Backend, e.Reason)
}

// Unwrap returns ErrUnavailable for errors.Is() compatibility.
func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// Name returns the backend name.
func (u *Unavailable) Name() string { return u.Backend }

// Available returns an UnavailableError.
func (u *Unavailable) Available() error {
	return &UnavailableError{Backend: u.Backend, Reason: u.Reason}
}

// Put returns an UnavailableError.
func (u *Unavailable) Put(context.Context, string, Record) error { return u.Available() }

// Get returns an UnavailableError.
func (u *Unavailable) Get(context.Context, string) (Record, bool, error) {
	return Record{}, false, u.Available()
}

// Keys returns an UnavailableError.
func (u *Unavailable) Keys(context.Context) ([]string, error) { return nil, u.Available() }

// Close is a no-op.
func (u *Unavailable) Close() error { return nil }
