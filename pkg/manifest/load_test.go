// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stores", "meta.json")
	result := Load(path)

	if result.Manifest == nil {
		t.Fatal("Load() returned nil manifest")
	}
	if result.Manifest.Len() != 0 {
		t.Errorf("Load() on missing file should return empty manifest, got %d entries", result.Manifest.Len())
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("Load() diagnostics = %d, want 1", len(result.Diagnostics))
	}
	d := result.Diagnostics[0]
	if d.Code != CodeNotFound || d.Severity != SeverityWarning {
		t.Errorf("diagnostic = %+v, want warning %s", d, CodeNotFound)
	}
	if !errors.Is(d.Cause, fs.ErrNotExist) {
		t.Errorf("diagnostic cause should wrap fs.ErrNotExist, got %v", d.Cause)
	}
}

func TestLoad_ValidManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meta.json")
	data := `{
  "repositories": {
    "demo": {"link": "git@example:org/demo.git", "httpsLink": "https://example/org/demo.git"},
    "lib": {"link": "https://example/org/lib.git", "name": "@org/lib", "directories": ["types", "services"]}
  }
}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	result := Load(path)
	if len(result.Diagnostics) != 0 {
		t.Fatalf("Load() diagnostics = %v, want none", result.Diagnostics)
	}

	m := result.Manifest
	if m.Len() != 2 || m.Skipped != 0 {
		t.Fatalf("Load() Len = %d Skipped = %d, want 2 and 0", m.Len(), m.Skipped)
	}

	demo, ok := m.Get("demo")
	if !ok {
		t.Fatal("demo not loaded")
	}
	if demo.Link != "git@example:org/demo.git" || demo.HTTPSLink != "https://example/org/demo.git" {
		t.Errorf("demo locators = %q / %q", demo.Link, demo.HTTPSLink)
	}

	lib, _ := m.Get("lib")
	if lib.Name != "@org/lib" {
		t.Errorf("lib.Name = %q, want @org/lib", lib.Name)
	}
	if len(lib.Directories) != 2 || lib.Directories[0] != "types" || lib.Directories[1] != "services" {
		t.Errorf("lib.Directories = %v", lib.Directories)
	}
	if lib.FetchLocator() != lib.Link {
		t.Errorf("lib without httpsLink should fetch through link")
	}

	// Loading is read-only.
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != data {
		t.Error("Load() modified the manifest file")
	}
}

func TestParse_InvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"repositories": `},
		{"repositories not an object", `{"repositories": ["demo"]}`},
		{"top level array", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Parse([]byte(tt.data), "meta.json")
			if result.Manifest == nil || result.Manifest.Len() != 0 {
				t.Fatalf("Parse() should return an empty manifest")
			}
			if len(result.Diagnostics) != 1 || result.Diagnostics[0].Code != CodeInvalid {
				t.Fatalf("Parse() diagnostics = %+v, want one %s", result.Diagnostics, CodeInvalid)
			}
			if !strings.Contains(result.Diagnostics[0].Error(), "meta.json") {
				t.Errorf("diagnostic should name the file, got %q", result.Diagnostics[0].Error())
			}
		})
	}
}

func TestParse_NoRepositoriesField(t *testing.T) {
	t.Parallel()

	result := Parse([]byte(`{"version": 1}`), "meta.json")
	if result.Manifest.Len() != 0 || len(result.Diagnostics) != 0 {
		t.Errorf("Parse() = %d entries, %v diagnostics; want empty without diagnostics",
			result.Manifest.Len(), result.Diagnostics)
	}
}

func TestParse_SkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	data := `{
  "repositories": {
    "good": {"link": "git@example:good.git", "httpsLink": "https://example/good.git"},
    "nolink": {"httpsLink": "https://example/nolink.git"},
    "emptylink": {"link": ""},
    "numeric": {"link": 42},
    "scalar": "https://example/scalar.git",
    "bad/id": {"link": "https://example/bad.git"},
    "badhttps": {"link": "https://example/x.git", "httpsLink": true},
    "baddirs": {"link": "https://example/x.git", "directories": "types"}
  }
}`

	result := Parse([]byte(data), "meta.json")
	m := result.Manifest

	if m.Len() != 1 {
		t.Fatalf("Parse() Len = %d (%v), want only the well-formed entry", m.Len(), m.IDs())
	}
	if _, ok := m.Get("good"); !ok {
		t.Error("well-formed entry was dropped")
	}
	if m.Skipped != 7 {
		t.Errorf("Skipped = %d, want 7", m.Skipped)
	}
	if len(result.Diagnostics) != 7 {
		t.Fatalf("Diagnostics = %d, want 7", len(result.Diagnostics))
	}
	for _, d := range result.Diagnostics {
		if d.Code != CodeEntrySkipped {
			t.Errorf("diagnostic code = %q, want %q", d.Code, CodeEntrySkipped)
		}
	}
}
