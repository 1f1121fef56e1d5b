// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers shared across packages: repository
// fixtures written to disk (WriteRepo), real git repositories built with
// go-git (InitGitRepo), a manually advanced clock and Must* wrappers that
// fail the test instead of returning errors.
package testutil
