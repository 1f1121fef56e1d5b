// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrRuntimeUnavailable is the sentinel error wrapped by RuntimeUnavailableError.
	ErrRuntimeUnavailable = errors.New("inspection runtime unavailable")
	// ErrModuleNotFound is the sentinel error wrapped by ModuleNotFoundError.
	ErrModuleNotFound = errors.New("module not found")
)

type (
	// Inspector gathers observations of a library's surface.
	Inspector interface {
		Name() string
		// Available returns nil, or an error wrapping ErrRuntimeUnavailable.
		Available(ctx context.Context) error
		Inspect(ctx context.Context, modulePath string, surface Surface) (*Observation, error)
	}

	// Observation is what an Inspector saw, keyed by TypeSurface.Name.
	Observation struct {
		Types map[string]TypeObservation `json:"types"`
	}

	// TypeObservation describes one loaded type.
	TypeObservation struct {
		// Resolved is false when the type's module path does not exist.
		Resolved bool `json:"resolved"`
		// Error is the load error message, if loading failed.
		Error   string                       `json:"error,omitempty"`
		Kind    Kind                         `json:"kind,omitempty"`
		Statics map[string]Kind              `json:"statics,omitempty"`
		Values  map[string]string            `json:"values,omitempty"`
		Digests map[string]DigestObservation `json:"digests,omitempty"`
		// Instance is set when the surface declares a construction.
		Instance *InstanceObservation `json:"instance,omitempty"`
	}

	// DigestObservation is the output of one digest call.
	DigestObservation struct {
		Output string `json:"output,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	// InstanceObservation describes a constructed instance.
	InstanceObservation struct {
		Created bool              `json:"created"`
		Error   string            `json:"error,omitempty"`
		Members map[string]Kind   `json:"members,omitempty"`
		Values  map[string]string `json:"values,omitempty"`
	}

	// RuntimeUnavailableError reports a missing inspection runtime.
	RuntimeUnavailableError struct {
		Runtime string
		Reason  string
	}

	// ModuleNotFoundError reports a library path that does not resolve.
	ModuleNotFoundError struct {
		Path string
	}

	// StaticInspector serves fixed observations. It backs offline replay of
	// a previously captured observation and tests.
	StaticInspector struct {
		Observation *Observation
	}
)

// Error implements the error interface.
func (e *RuntimeUnavailableError) Error() string {
	return fmt.Sprintf("runtime %q unavailable: %s", e.Runtime, e.Reason)
}

// Unwrap returns ErrRuntimeUnavailable for errors.Is() compatibility.
func (e *RuntimeUnavailableError) Unwrap() error { return ErrRuntimeUnavailable }

// Error implements the error interface.
func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module not found at %s", e.Path)
}

// Unwrap returns ErrModuleNotFound for errors.Is() compatibility.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// ReadObservation decodes a JSON observation such as one saved with
// `workspace probe --save-observation`.
func ReadObservation(r io.Reader) (*Observation, error) {
	var obs Observation
	if err := json.NewDecoder(r).Decode(&obs); err != nil {
		return nil, fmt.Errorf("failed to decode observation: %w", err)
	}
	return &obs, nil
}

// Name returns "static".
func (s *StaticInspector) Name() string { return "static" }

// Available always returns nil.
func (s *StaticInspector) Available(context.Context) error { return nil }

// Inspect returns the fixed observation. A nil observation means nothing
// resolved.
func (s *StaticInspector) Inspect(_ context.Context, modulePath string, _ Surface) (*Observation, error) {
	if s.Observation == nil {
		return nil, &ModuleNotFoundError{Path: modulePath}
	}
	return s.Observation, nil
}

// isMissingDependency reports whether a construction error was caused by an
// absent transitive dependency rather than a broken library. Factory
// functions additionally fail with a "struct" error when their optional
// binary encoder is missing; direct constructors never do.
func isMissingDependency(msg string, factory bool) bool {
	if strings.Contains(msg, "Cannot find module") {
		return true
	}
	return factory && strings.Contains(msg, "struct")
}
