// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// FileName is the default descriptor file name.
	FileName = "package.json"
	// DefaultEntryPoint is used when the descriptor declares no main.
	DefaultEntryPoint = "index.js"

	schemaName = "package.schema.json"
)

//go:embed package.schema.json
var schemaBytes []byte

// ErrInvalidDescriptor is the sentinel error wrapped by InvalidDescriptorError.
var ErrInvalidDescriptor = errors.New("invalid package descriptor")

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(schemaName, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("loading schema %q: %w", schemaName, err)
	}
	sch, err := comp.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %q: %w", schemaName, err)
	}
	return sch, nil
})

type (
	// Descriptor holds the descriptor fields used by structural validation.
	Descriptor struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
		Main    string `json:"main,omitempty"`
	}

	// InvalidDescriptorError is returned when a descriptor is not a JSON
	// object matching the descriptor schema.
	InvalidDescriptorError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid package descriptor %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *InvalidDescriptorError) Unwrap() error { return ErrInvalidDescriptor }

// Load reads and parses the descriptor at path. Read errors are returned
// unwrapped so callers can test for fs.ErrNotExist.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse validates data against the descriptor schema and decodes it.
// name identifies the document in errors.
func Parse(data []byte, name string) (*Descriptor, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidDescriptorError{Path: name, Err: err}
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &InvalidDescriptorError{Path: name, Err: err}
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &InvalidDescriptorError{Path: name, Err: err}
	}
	return &d, nil
}

// EntryPoint returns the declared main file, or fallback when none is declared.
func (d *Descriptor) EntryPoint(fallback string) string {
	if d.Main != "" {
		return d.Main
	}
	return fallback
}
