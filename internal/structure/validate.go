// SPDX-License-Identifier: MPL-2.0

package structure

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabriclabs/workspace/pkg/descriptor"
	"github.com/fabriclabs/workspace/pkg/types"
)

// Validate inspects the repository at path. Every artifact is checked
// independently and all failures are reported in the Result. An error is
// returned only when path cannot be resolved to an absolute path.
func Validate(path types.FilesystemPath, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	absPath, err := filepath.Abs(string(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	root := types.FilesystemPath(absPath)

	result := &Result{Path: root}

	info, err := os.Stat(absPath)
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist):
		result.fail(ArtifactRoot, absPath, "path does not exist")
		return result, nil
	case err != nil:
		result.fail(ArtifactRoot, absPath, fmt.Sprintf("cannot access path: %v", err))
		return result, nil
	case !info.IsDir():
		result.fail(ArtifactRoot, absPath, "path is not a directory")
		return result, nil
	}

	desc := checkDescriptor(result, absPath, opts)
	checkIdentity(result, desc, opts)
	checkEntryPoint(result, absPath, desc, opts)
	for _, dir := range opts.Directories {
		checkDirectory(result, absPath, dir)
	}

	return result, nil
}

func checkDescriptor(r *Result, root string, opts Options) *descriptor.Descriptor {
	d, err := descriptor.Load(filepath.Join(root, opts.Descriptor))
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist):
		r.fail(ArtifactDescriptor, opts.Descriptor, "missing descriptor")
		return nil
	case err != nil:
		r.fail(ArtifactDescriptor, opts.Descriptor, err.Error())
		return nil
	}
	r.Descriptor = d
	r.pass(ArtifactDescriptor, opts.Descriptor)
	return d
}

func checkIdentity(r *Result, d *descriptor.Descriptor, opts Options) {
	if opts.ExpectedName == "" {
		return
	}
	artifact := opts.Descriptor + "#name"
	switch {
	case d == nil:
		r.fail(ArtifactIdentity, artifact, "descriptor unavailable")
	case d.Name != opts.ExpectedName:
		r.fail(ArtifactIdentity, artifact, fmt.Sprintf("name is %q, expected %q", d.Name, opts.ExpectedName))
	default:
		r.pass(ArtifactIdentity, artifact)
	}
}

// checkEntryPoint falls back to the default entry point when the descriptor
// is missing so the entry point is still reported on its own.
func checkEntryPoint(r *Result, root string, d *descriptor.Descriptor, opts Options) {
	entry := opts.DefaultEntryPoint
	if d != nil {
		entry = d.EntryPoint(opts.DefaultEntryPoint)
	}
	r.EntryPoint = entry

	target, ok := within(root, entry)
	if !ok {
		r.fail(ArtifactEntryPoint, entry, "entry point escapes the repository root")
		return
	}
	info, err := os.Stat(target)
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist):
		r.fail(ArtifactEntryPoint, entry, "entry point does not exist")
	case err != nil:
		r.fail(ArtifactEntryPoint, entry, fmt.Sprintf("cannot access entry point: %v", err))
	case !info.Mode().IsRegular():
		r.fail(ArtifactEntryPoint, entry, "entry point is not a regular file")
	default:
		r.pass(ArtifactEntryPoint, entry)
	}
}

func checkDirectory(r *Result, root, dir string) {
	artifact := strings.TrimSuffix(dir, "/") + "/"
	target, ok := within(root, dir)
	if !ok {
		r.fail(ArtifactDirectory, artifact, "directory escapes the repository root")
		return
	}
	info, err := os.Stat(target)
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist):
		r.fail(ArtifactDirectory, artifact, "missing directory")
	case err != nil:
		r.fail(ArtifactDirectory, artifact, fmt.Sprintf("cannot access directory: %v", err))
	case !info.IsDir():
		r.fail(ArtifactDirectory, artifact, "not a directory")
	default:
		r.pass(ArtifactDirectory, artifact)
	}
}

// within joins rel onto root and reports whether the result stays inside root.
func within(root, rel string) (string, bool) {
	if filepath.IsAbs(rel) {
		return "", false
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	relToRoot, err := filepath.Rel(root, target)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
