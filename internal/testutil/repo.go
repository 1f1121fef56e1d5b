// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// RepoFixture describes a repository tree written by WriteRepo.
type RepoFixture struct {
	// Name is written as the descriptor name when non-empty.
	Name string
	// Main is written as the descriptor main field when non-empty.
	Main string
	// Descriptor overrides the generated package.json content verbatim.
	Descriptor string
	// NoDescriptor skips writing package.json.
	NoDescriptor bool
	// EntryPoint is created as a regular file when non-empty.
	EntryPoint string
	// Directories are created under the root.
	Directories []string
	// GitMarker creates an empty .git directory.
	GitMarker bool
}

// WriteRepo materializes fx under dir, creating dir if needed. The test fails
// immediately on any filesystem error.
func WriteRepo(t testing.TB, dir string, fx RepoFixture) {
	t.Helper()

	MustMkdirAll(t, dir, 0o755)

	if fx.GitMarker {
		MustMkdirAll(t, filepath.Join(dir, ".git"), 0o755)
	}

	if !fx.NoDescriptor {
		content := fx.Descriptor
		if content == "" {
			fields := map[string]string{}
			if fx.Name != "" {
				fields["name"] = fx.Name
			}
			if fx.Main != "" {
				fields["main"] = fx.Main
			}
			data, err := json.Marshal(fields)
			if err != nil {
				t.Fatalf("failed to encode descriptor: %v", err)
			}
			content = string(data)
		}
		MustWriteFile(t, filepath.Join(dir, "package.json"), content)
	}

	if fx.EntryPoint != "" {
		path := filepath.Join(dir, filepath.FromSlash(fx.EntryPoint))
		MustMkdirAll(t, filepath.Dir(path), 0o755)
		MustWriteFile(t, path, "module.exports = {};\n")
	}

	for _, d := range fx.Directories {
		MustMkdirAll(t, filepath.Join(dir, filepath.FromSlash(d)), 0o755)
	}
}

// MustWriteFile writes content to path with 0o644 permissions.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
