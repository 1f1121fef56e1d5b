// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"time"

	"github.com/fabriclabs/workspace/internal/probe"
	"github.com/fabriclabs/workspace/internal/provenance"
	"github.com/fabriclabs/workspace/internal/structure"
	"github.com/fabriclabs/workspace/pkg/manifest"
)

const (
	// OutcomePassed means the repository was provisioned and validated.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means provisioning or validation failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means required infrastructure was unavailable.
	OutcomeSkipped Outcome = "skipped"
)

type (
	// Outcome is the result of one work item.
	Outcome string

	// ItemResult is the outcome for one declared repository.
	ItemResult struct {
		ID      manifest.RepositoryID `json:"id"`
		Outcome Outcome               `json:"outcome"`
		Reason  string                `json:"reason,omitempty"`
		// FailedArtifacts lists the structural checks that failed.
		FailedArtifacts []string          `json:"failedArtifacts,omitempty"`
		Path            string            `json:"path,omitempty"`
		Commit          string            `json:"commit,omitempty"`
		Provenance      provenance.Status `json:"provenance,omitempty"`
		Duration        time.Duration     `json:"duration"`
		Validation      *structure.Result `json:"validation,omitempty"`
	}

	// LibraryResult is the outcome of the external library check.
	LibraryResult struct {
		Path       string            `json:"path"`
		Outcome    Outcome           `json:"outcome"`
		Reason     string            `json:"reason,omitempty"`
		Validation *structure.Result `json:"validation,omitempty"`
		Probe      *probe.Result     `json:"probe,omitempty"`
	}

	// Report summarizes a run. Items are sorted by ID.
	Report struct {
		RunID    string        `json:"runId"`
		Root     string        `json:"root"`
		Manifest string        `json:"manifest"`
		Started  time.Time     `json:"started"`
		Duration time.Duration `json:"duration"`
		Items    []ItemResult  `json:"items"`
		// ManifestSkipped counts malformed manifest entries that were dropped.
		ManifestSkipped int `json:"manifestSkipped"`
		// Diagnostics are the problems found while loading the manifest.
		Diagnostics []manifest.Diagnostic `json:"diagnostics,omitempty"`
		Library     *LibraryResult        `json:"library,omitempty"`
	}
)

// Passed reports whether nothing failed. Skipped items do not fail a run.
func (r *Report) Passed() bool {
	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			return false
		}
	}
	return r.Library == nil || r.Library.Outcome != OutcomeFailed
}

// Counts returns the number of passed, failed and skipped items.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, item := range r.Items {
		switch item.Outcome {
		case OutcomePassed:
			passed++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Item returns the result for id.
func (r *Report) Item(id manifest.RepositoryID) (ItemResult, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ItemResult{}, false
}
