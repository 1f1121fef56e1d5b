// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the workspace command-line interface.
//
// Every command is built by a newXCommand(app, flags) constructor so handlers share
// one App, the composition root holding the config provider and output writers.
package cmd
