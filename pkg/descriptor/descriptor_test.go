// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		data      string
		wantErr   bool
		wantName  string
		wantEntry string
	}{
		{
			name:      "name and main",
			data:      `{"name": "@fabric/core", "main": "lib/fabric.js"}`,
			wantName:  "@fabric/core",
			wantEntry: "lib/fabric.js",
		},
		{
			name:      "main defaults",
			data:      `{"name": "demo", "scripts": {"test": "mocha"}}`,
			wantName:  "demo",
			wantEntry: DefaultEntryPoint,
		},
		{
			name:      "empty object",
			data:      `{}`,
			wantEntry: DefaultEntryPoint,
		},
		{name: "not json", data: `{"name": `, wantErr: true},
		{name: "array", data: `["demo"]`, wantErr: true},
		{name: "numeric name", data: `{"name": 5}`, wantErr: true},
		{name: "empty main", data: `{"name": "demo", "main": ""}`, wantErr: true},
		{name: "main not a string", data: `{"main": ["index.js"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := Parse([]byte(tt.data), FileName)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse() = %+v, want error", d)
				}
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Errorf("Parse() error should wrap ErrInvalidDescriptor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if got := d.EntryPoint(DefaultEntryPoint); got != tt.wantEntry {
				t.Errorf("EntryPoint() = %q, want %q", got, tt.wantEntry)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, FileName)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() on missing file error = %v, want fs.ErrNotExist", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(`{"name": "demo"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Name != "demo" {
		t.Errorf("Name = %q, want demo", d.Name)
	}
}
