// SPDX-License-Identifier: MPL-2.0

// Package structure inspects a materialized repository and reports whether it
// has the expected top-level shape: a parseable package descriptor, a matching
// package name, an existing entry point and a set of required directories.
// Inspection is read-only.
package structure
