// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the manifest, clone,
// structure and provenance packages. It imports only the standard library.
package types
