// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
var ErrInvalidFilesystemPath = errors.New("invalid filesystem path")

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// The zero value ("") is invalid: a path must always point somewhere.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty or whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns nil if the path is non-empty and not whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// Join appends elem to the path using the platform separator.
func (p FilesystemPath) Join(elem ...string) FilesystemPath {
	return FilesystemPath(filepath.Join(append([]string{string(p)}, elem...)...))
}

// Resolve returns p as an absolute path. Relative paths are resolved
// against base when base is non-empty, otherwise against the working directory.
func (p FilesystemPath) Resolve(base FilesystemPath) (FilesystemPath, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	s := string(p)
	if !filepath.IsAbs(s) && base != "" {
		s = filepath.Join(string(base), s)
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", p, err)
	}
	return FilesystemPath(abs), nil
}

// IsDir reports whether the path exists and is a directory.
func (p FilesystemPath) IsDir() bool {
	info, err := os.Stat(string(p))
	return err == nil && info.IsDir()
}

// Exists reports whether anything exists at the path.
func (p FilesystemPath) Exists() bool {
	_, err := os.Lstat(string(p))
	return err == nil
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }
