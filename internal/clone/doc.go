// SPDX-License-Identifier: MPL-2.0

// Package clone materializes shallow clones of declared repositories under a
// repositories directory (by default <workspace>/stores/repositories). Each
// repository lives at <dir>/<id>-repository and is replaced on every
// provisioning run.
//
// Fetch infrastructure is pluggable through Fetcher. An unavailable fetcher
// yields errors wrapping ErrFetcherUnavailable, which callers treat as a skip
// rather than a failure.
package clone
