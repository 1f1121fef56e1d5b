// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"fmt"

	"github.com/fabriclabs/workspace/internal/probe"
	"github.com/fabriclabs/workspace/internal/structure"
)

// checkLibrary validates the library checkout and, when enabled, probes its
// surface. A missing checkout is skipped unless the library is required.
func (o *Orchestrator) checkLibrary(ctx context.Context) *LibraryResult {
	lib := o.cfg.Library
	result := &LibraryResult{Path: string(lib.Path)}

	if !lib.Path.IsDir() {
		if lib.Required {
			result.Outcome = OutcomeFailed
			result.Reason = "library checkout missing"
		} else {
			result.Outcome = OutcomeSkipped
			result.Reason = "library checkout not present"
		}
		return result
	}

	opts := o.cfg.Validation
	opts.ExpectedName = lib.Name
	opts.Directories = lib.Directories
	validation, err := structure.Validate(lib.Path, opts)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	result.Validation = validation
	result.Outcome = OutcomePassed
	if !validation.Passed() {
		result.Outcome = OutcomeFailed
		result.Reason = "structural validation failed: " + validation.String()
	}

	if !lib.Probe || o.inspector == nil {
		return result
	}

	probed, err := probe.Probe(ctx, o.inspector, string(lib.Path), lib.Surface)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = appendReason(result.Reason, fmt.Sprintf("probe error: %v", err))
		return result
	}
	result.Probe = probed

	switch probed.Status {
	case probe.StatusFailed:
		result.Outcome = OutcomeFailed
		result.Reason = appendReason(result.Reason, "capability probe failed")
	case probe.StatusSkipped:
		result.Reason = appendReason(result.Reason, "capability probe skipped: "+probed.Reason)
	}
	return result
}

func appendReason(existing, more string) string {
	if existing == "" {
		return more
	}
	return existing + "; " + more
}
