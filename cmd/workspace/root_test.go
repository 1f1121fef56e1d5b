// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version, Commit, BuildDate = "1.2.3", "abc1234", "2026-01-02"
	want := "1.2.3 (commit: abc1234, built: 2026-01-02)"
	if got := getVersionString(); got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitSuccess},
		{"plain error", errors.New("boom"), types.ExitFailure},
		{"failed items", failed("%d failed", 2), types.ExitFailure},
		{"usage", usage(errors.New("bad flag")), types.ExitUsage},
		{"wrapped usage", fmt.Errorf("run: %w", usage(errors.New("bad flag"))), types.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := usage(cause)
	if !errors.Is(err, cause) {
		t.Error("usage() should wrap its cause")
	}
	if err.Error() != "cause" {
		t.Errorf("Error() = %q, want %q", err.Error(), "cause")
	}
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if got := formatErrorForDisplay(plain, false); got != "plain" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("load manifest").
		WithResource("meta.json").
		WithSuggestion("Check the path").
		Wrap(errors.New("missing")).
		BuildError()
	got := formatErrorForDisplay(fmt.Errorf("outer: %w", ae), false)
	if !strings.Contains(got, "load manifest") || !strings.Contains(got, "Check the path") {
		t.Errorf("formatErrorForDisplay(actionable) = %q", got)
	}
}

func TestRecordKey(t *testing.T) {
	t.Parallel()

	if got := recordKey("demo"); got != "demo-repository" {
		t.Errorf("recordKey(demo) = %q", got)
	}
	if got := recordKey("demo-repository"); got != "demo-repository" {
		t.Errorf("recordKey(demo-repository) = %q", got)
	}
}
