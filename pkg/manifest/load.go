// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/fabriclabs/workspace/pkg/cueutil"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

type rawManifest struct {
	Repositories map[string]any `json:"repositories"`
}

// Load reads the manifest at path. It never returns an error: any read or
// parse failure yields an empty manifest and a warning diagnostic.
func Load(path string) LoadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		code, msg := CodeUnreadable, "could not read manifest"
		if errors.Is(err, fs.ErrNotExist) {
			code, msg = CodeNotFound, "manifest not found"
		}
		return LoadResult{
			Manifest: Empty(path),
			Diagnostics: []Diagnostic{{
				Severity: SeverityWarning,
				Code:     code,
				Message:  fmt.Sprintf("%s: %v", msg, err),
				Path:     path,
				Cause:    err,
			}},
		}
	}
	return Parse(data, path)
}

// Parse decodes manifest bytes. name is used for diagnostics and Manifest.Path.
func Parse(data []byte, name string) LoadResult {
	res, err := cueutil.ParseAndDecode[rawManifest](manifestSchema, data, "#Manifest", cueutil.WithFilename(name))
	if err != nil {
		return LoadResult{
			Manifest: Empty(name),
			Diagnostics: []Diagnostic{{
				Severity: SeverityWarning,
				Code:     CodeInvalid,
				Message:  fmt.Sprintf("could not parse manifest: %v", err),
				Path:     name,
				Cause:    err,
			}},
		}
	}

	m := Empty(name)
	var diags []Diagnostic

	keys := make([]string, 0, len(res.Value.Repositories))
	for k := range res.Value.Repositories {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		decl, err := declarationFrom(key, res.Value.Repositories[key])
		if err != nil {
			m.Skipped++
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeEntrySkipped,
				Message:  fmt.Sprintf("skipping repository %q: %v", key, err),
				Path:     name,
				Cause:    err,
			})
			continue
		}
		m.Repositories[decl.ID] = decl
	}

	return LoadResult{Manifest: m, Diagnostics: diags}
}

// declarationFrom converts one raw entry, rejecting entries without a valid
// identity or primary locator.
func declarationFrom(key string, raw any) (Declaration, error) {
	id := RepositoryID(key)
	if err := id.Validate(); err != nil {
		return Declaration{}, err
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return Declaration{}, fmt.Errorf("entry must be an object, got %T", raw)
	}

	link, err := locatorField(fields, "link", true)
	if err != nil {
		return Declaration{}, err
	}
	httpsLink, err := locatorField(fields, "httpsLink", false)
	if err != nil {
		return Declaration{}, err
	}

	decl := Declaration{ID: id, Link: link, HTTPSLink: httpsLink}

	if v, present := fields["name"]; present {
		name, ok := v.(string)
		if !ok {
			return Declaration{}, fmt.Errorf("field %q must be a string", "name")
		}
		decl.Name = name
	}

	if v, present := fields["directories"]; present {
		list, ok := v.([]any)
		if !ok {
			return Declaration{}, fmt.Errorf("field %q must be a list of strings", "directories")
		}
		for _, item := range list {
			dir, ok := item.(string)
			if !ok || dir == "" {
				return Declaration{}, fmt.Errorf("field %q must be a list of non-empty strings", "directories")
			}
			decl.Directories = append(decl.Directories, dir)
		}
	}

	return decl, nil
}

func locatorField(fields map[string]any, key string, required bool) (Locator, error) {
	v, present := fields[key]
	if !present || v == nil {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	if s == "" {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	loc := Locator(s)
	if err := loc.Validate(); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return loc, nil
}
