// SPDX-License-Identifier: MPL-2.0

package structure

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fabriclabs/workspace/pkg/descriptor"
	"github.com/fabriclabs/workspace/pkg/types"
)

const (
	// ArtifactRoot is the repository directory itself.
	ArtifactRoot ArtifactKind = "root"
	// ArtifactDescriptor is the package descriptor file.
	ArtifactDescriptor ArtifactKind = "descriptor"
	// ArtifactIdentity is the descriptor's package name.
	ArtifactIdentity ArtifactKind = "identity"
	// ArtifactEntryPoint is the file named by the descriptor's main field.
	ArtifactEntryPoint ArtifactKind = "entry_point"
	// ArtifactDirectory is a required top-level directory.
	ArtifactDirectory ArtifactKind = "directory"
)

type (
	// ArtifactKind categorizes a structural check.
	ArtifactKind string

	// Options selects which artifacts are checked.
	Options struct {
		// Descriptor is the descriptor file name relative to the root.
		Descriptor string
		// ExpectedName, when non-empty, must equal the descriptor name exactly.
		ExpectedName string
		// DefaultEntryPoint is used when the descriptor declares no main.
		DefaultEntryPoint string
		// Directories must exist directly under the root.
		Directories []string
	}

	// Check is the outcome of one artifact check.
	Check struct {
		Kind     ArtifactKind `json:"kind"`
		Artifact string       `json:"artifact"`
		Passed   bool         `json:"passed"`
		Message  string       `json:"message,omitempty"`
	}

	// Result aggregates every check run against one repository.
	Result struct {
		Path types.FilesystemPath `json:"path"`
		// Descriptor is set when the descriptor parsed.
		Descriptor *descriptor.Descriptor `json:"descriptor,omitempty"`
		// EntryPoint is the entry point that was checked, relative to Path.
		EntryPoint string  `json:"entryPoint,omitempty"`
		Checks     []Check `json:"checks"`
	}
)

// DefaultOptions returns options checking package.json and index.js with no
// expected name and no required directories.
func DefaultOptions() Options {
	return Options{
		Descriptor:        descriptor.FileName,
		DefaultEntryPoint: descriptor.DefaultEntryPoint,
	}
}

// With returns a copy of o with name (when non-empty) replacing ExpectedName
// and dirs appended to Directories without duplicates.
func (o Options) With(name string, dirs []string) Options {
	out := o
	if name != "" {
		out.ExpectedName = name
	}
	out.Directories = slices.Clone(o.Directories)
	for _, d := range dirs {
		if !slices.Contains(out.Directories, d) {
			out.Directories = append(out.Directories, d)
		}
	}
	return out
}

func (o Options) withDefaults() Options {
	if o.Descriptor == "" {
		o.Descriptor = descriptor.FileName
	}
	if o.DefaultEntryPoint == "" {
		o.DefaultEntryPoint = descriptor.DefaultEntryPoint
	}
	return o
}

// Passed reports whether every check passed.
func (r *Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks in the order they ran.
func (r *Result) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// FailedArtifacts returns the artifact names of failed checks.
func (r *Result) FailedArtifacts() []string {
	var out []string
	for _, c := range r.Failures() {
		out = append(out, c.Artifact)
	}
	return out
}

// String summarizes the failures, or "ok".
func (r *Result) String() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return "ok"
	}
	parts := make([]string, 0, len(failures))
	for _, c := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Artifact, c.Message))
	}
	return strings.Join(parts, "; ")
}

func (r *Result) pass(kind ArtifactKind, artifact string) {
	r.Checks = append(r.Checks, Check{Kind: kind, Artifact: artifact, Passed: true})
}

func (r *Result) fail(kind ArtifactKind, artifact, message string) {
	r.Checks = append(r.Checks, Check{Kind: kind, Artifact: artifact, Message: message})
}
