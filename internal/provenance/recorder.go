// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fabriclabs/workspace/internal/clone"
	"github.com/fabriclabs/workspace/pkg/manifest"
)

const (
	// StatusRecorded means the record was written and read back intact.
	StatusRecorded Status = "recorded"
	// StatusNotRecorded means the store was unavailable.
	StatusNotRecorded Status = "not_recorded"
)

// ErrVerificationFailed is the sentinel error wrapped by VerificationError.
var ErrVerificationFailed = errors.New("provenance verification failed")

type (
	// Status is the outcome of Recorder.Record.
	Status string

	// VerificationError reports a record that did not read back as written.
	VerificationError struct {
		Key    string
		Field  string
		Want   string
		Actual string
	}

	// Recorder writes provenance for provisioned clones on a best-effort basis.
	Recorder struct {
		store  Store
		now    func() time.Time
		logger *slog.Logger

		availOnce sync.Once
		availErr  error
	}

	// RecorderOption configures a Recorder.
	RecorderOption func(*Recorder)
)

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("record %s: %s is %q, expected %q", e.Key, e.Field, e.Actual, e.Want)
}

// Unwrap returns ErrVerificationFailed for errors.Is() compatibility.
func (e *VerificationError) Unwrap() error { return ErrVerificationFailed }

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithRecorderLogger sets the logger. Defaults to slog.Default().
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// NewRecorder creates a Recorder over store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Recorder) Store() Store { return r.store }

// Available reports store availability. It is evaluated once per Recorder.
func (r *Recorder) Available() error {
	r.availOnce.Do(func() { r.availErr = r.store.Available() })
	return r.availErr
}

// Record writes the provenance of c and reads it back to verify link, cloned
// and path. Store unavailability, at startup or on any operation, yields
// StatusNotRecorded with a nil error. Any other failure is returned.
func (r *Recorder) Record(ctx context.Context, c *clone.ProvisionedClone, decl manifest.Declaration) (Status, error) {
	key := KeyFor(decl.ID)
	logger := r.logger.With("repository", string(decl.ID), "store", r.store.Name())

	if err := r.Available(); err != nil {
		logger.Debug("provenance not recorded", "reason", err)
		return StatusNotRecorded, nil
	}

	rec := Record{
		Link:      decl.Link,
		HTTPSLink: decl.FetchLocator(),
		Cloned:    true,
		Path:      string(c.Path),
		Timestamp: r.now().UnixMilli(),
		Commit:    c.Commit,
	}

	if err := r.store.Put(ctx, key, rec); err != nil {
		return r.degrade(logger, err)
	}

	got, found, err := r.store.Get(ctx, key)
	if err != nil {
		return r.degrade(logger, err)
	}
	if err := verify(key, rec, got, found); err != nil {
		return "", err
	}

	logger.Debug("provenance recorded", "key", key)
	return StatusRecorded, nil
}

func (r *Recorder) degrade(logger *slog.Logger, err error) (Status, error) {
	if errors.Is(err, ErrUnavailable) {
		logger.Debug("provenance not recorded", "reason", err)
		return StatusNotRecorded, nil
	}
	return "", err
}

func verify(key string, want, got Record, found bool) error {
	switch {
	case !found:
		return &VerificationError{Key: key, Field: "record", Want: "present", Actual: "missing"}
	case got.Link != want.Link:
		return &VerificationError{Key: key, Field: "link", Want: string(want.Link), Actual: string(got.Link)}
	case !got.Cloned:
		return &VerificationError{Key: key, Field: "cloned", Want: "true", Actual: "false"}
	case got.Path == "":
		return &VerificationError{Key: key, Field: "path", Want: want.Path, Actual: ""}
	}
	return nil
}
