// SPDX-License-Identifier: MPL-2.0

// Package config loads workspace configuration using Viper with CUE as the file format.
//
// Values are layered: built-in defaults, then a workspace.cue file (an explicit
// path, the user config directory, or the current directory, in that order),
// then WORKSPACE_* environment variables. The file is validated against the
// embedded #Config schema (config_schema.cue) before it is merged.
package config
