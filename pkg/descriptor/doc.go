// SPDX-License-Identifier: MPL-2.0

// Package descriptor parses package descriptors (package.json) found at the
// root of a provisioned repository. Only the fields the workspace checks are
// decoded; the document is validated against an embedded JSON Schema first.
package descriptor
