// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystemPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    FilesystemPath
		wantErr bool
	}{
		{"absolute path", FilesystemPath("/srv/workspace"), false},
		{"relative path", FilesystemPath("stores/meta.json"), false},
		{"dot path", FilesystemPath("."), false},
		{"empty is invalid", FilesystemPath(""), true},
		{"whitespace only is invalid", FilesystemPath("   "), true},
		{"tab only is invalid", FilesystemPath("\t"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.path.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Errorf("FilesystemPath(%q).Validate() returned unexpected error: %v", tt.path, err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidFilesystemPath) {
				t.Errorf("error should wrap ErrInvalidFilesystemPath, got: %v", err)
			}
			var fpErr *InvalidFilesystemPathError
			if !errors.As(err, &fpErr) {
				t.Errorf("error should be *InvalidFilesystemPathError, got: %T", err)
			}
		})
	}
}

func TestFilesystemPath_Resolve(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	got, err := FilesystemPath("stores").Resolve(FilesystemPath(base))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(base, "stores"); string(got) != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}

	abs := filepath.Join(base, "elsewhere")
	got, err = FilesystemPath(abs).Resolve("/ignored")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(got) != abs {
		t.Errorf("Resolve() of absolute path = %q, want %q", got, abs)
	}

	if _, err := FilesystemPath("").Resolve(FilesystemPath(base)); !errors.Is(err, ErrInvalidFilesystemPath) {
		t.Errorf("Resolve() of empty path error = %v, want ErrInvalidFilesystemPath", err)
	}
}

func TestFilesystemPath_IsDirAndExists(t *testing.T) {
	t.Parallel()

	dir := FilesystemPath(t.TempDir())
	file := dir.Join("package.json")
	if err := os.WriteFile(string(file), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !dir.IsDir() {
		t.Error("IsDir() = false for a directory")
	}
	if file.IsDir() {
		t.Error("IsDir() = true for a regular file")
	}
	if !file.Exists() {
		t.Error("Exists() = false for an existing file")
	}
	if dir.Join("missing").Exists() {
		t.Error("Exists() = true for a missing path")
	}
}
