// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE decoding flow used by the manifest
// loader and the configuration layer:
//
//  1. Compile the embedded schema
//  2. Compile user data (CUE or plain JSON) and unify it with a schema definition
//  3. Validate and decode into a Go value
//
// Errors carry the source file name and a JSON-path style location:
//
//	//go:embed manifest_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[rawManifest](schema, data, "#Manifest",
//	    cueutil.WithFilename("stores/meta.json"))
package cueutil
