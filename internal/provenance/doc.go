// SPDX-License-Identifier: MPL-2.0

// Package provenance records, for each provisioned repository, where it was
// cloned from, where it lives and when it was provisioned.
//
// The store is optional infrastructure. Open returns an Unavailable store
// instead of failing when a backend cannot be initialized, and Recorder
// treats errors wrapping ErrUnavailable as "not recorded" while propagating
// every other error.
package provenance
