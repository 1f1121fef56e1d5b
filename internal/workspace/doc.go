// SPDX-License-Identifier: MPL-2.0

// Package workspace drives a provisioning run: for every declared repository
// it clones, validates and records provenance, and it checks the external
// library checkout alongside. Items are independent; one failure never stops
// the others.
package workspace
