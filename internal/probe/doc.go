// SPDX-License-Identifier: MPL-2.0

// Package probe checks that an already-materialized external library exposes
// an expected public surface. The surface is declared as data (Surface) and
// compared against observations gathered by an Inspector, so the probe never
// guesses at the library's shape.
//
// A library or runtime that is not present yields a skipped result, never a
// failed one.
package probe
