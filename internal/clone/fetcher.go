// SPDX-License-Identifier: MPL-2.0

package clone

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/fabriclabs/workspace/pkg/manifest"
)

const (
	// BackendGoGit clones in-process with go-git.
	BackendGoGit = "go-git"
	// BackendGitCLI shells out to the git executable.
	BackendGitCLI = "git"
	// BackendNone disables fetching; every repository is skipped.
	BackendNone = "none"
)

type (
	// Fetcher performs a shallow, single-branch clone of a locator into dest.
	// dest does not exist when Clone is called. Implementations must honor
	// ctx cancellation.
	Fetcher interface {
		Name() string
		// Available returns nil when the fetcher can be used, or an error
		// wrapping ErrFetcherUnavailable.
		Available() error
		Clone(ctx context.Context, locator manifest.Locator, dest string) error
	}

	// GoGitFetcher clones with go-git. It is always available.
	GoGitFetcher struct {
		sshAuth  transport.AuthMethod
		httpAuth transport.AuthMethod
	}

	// GitCLIFetcher clones by running `git clone --depth 1`.
	GitCLIFetcher struct {
		// Binary is the git executable name or path.
		Binary string
	}

	// UnavailableFetcher never clones. It backs the "none" backend and
	// stands in for a fetcher that failed to initialize.
	UnavailableFetcher struct {
		Backend string
		Reason  string
	}
)

// NewFetcher returns the fetcher for a backend name.
func NewFetcher(backend string) (Fetcher, error) {
	switch backend {
	case "", BackendGoGit:
		return NewGoGitFetcher(), nil
	case BackendGitCLI:
		return &GitCLIFetcher{Binary: "git"}, nil
	case BackendNone:
		return &UnavailableFetcher{Backend: BackendNone, Reason: "fetching disabled"}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, %s or %s)", ErrUnknownBackend, backend, BackendGoGit, BackendGitCLI, BackendNone)
	}
}

// NewGoGitFetcher creates a go-git fetcher with credentials discovered from
// ~/.ssh and token environment variables.
func NewGoGitFetcher() *GoGitFetcher {
	return &GoGitFetcher{
		sshAuth:  trySSHAuth(),
		httpAuth: tryHTTPAuth(),
	}
}

// Name returns the backend name.
func (f *GoGitFetcher) Name() string { return BackendGoGit }

// Available always returns nil; go-git runs in-process.
func (f *GoGitFetcher) Available() error { return nil }

// Clone performs a depth-1 single-branch clone without tags.
func (f *GoGitFetcher) Clone(ctx context.Context, locator manifest.Locator, dest string) error {
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:          string(locator),
		Auth:         f.authFor(locator),
		SingleBranch: true,
		Depth:        1,
		Tags:         git.NoTags,
	})
	return err
}

func (f *GoGitFetcher) authFor(locator manifest.Locator) transport.AuthMethod {
	s := string(locator)
	switch {
	case locator.IsSSH():
		return f.sshAuth
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		return f.httpAuth
	default:
		return nil
	}
}

// Name returns the backend name.
func (f *GitCLIFetcher) Name() string { return BackendGitCLI }

// Available reports whether the git executable is on PATH.
func (f *GitCLIFetcher) Available() error {
	if _, err := exec.LookPath(f.binary()); err != nil {
		return &FetcherUnavailableError{Fetcher: BackendGitCLI, Reason: err.Error()}
	}
	return nil
}

// Clone runs git clone. Interactive credential prompts are disabled so a
// private repository fails instead of hanging.
func (f *GitCLIFetcher) Clone(ctx context.Context, locator manifest.Locator, dest string) error {
	cmd := exec.CommandContext(ctx, f.binary(), "clone", "--depth", "1", "--single-branch", "--no-tags", "--quiet", "--", string(locator), dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (f *GitCLIFetcher) binary() string {
	if f.Binary == "" {
		return "git"
	}
	return f.Binary
}

// Name returns the backend name.
func (f *UnavailableFetcher) Name() string { return f.Backend }

// Available always returns a FetcherUnavailableError.
func (f *UnavailableFetcher) Available() error {
	return &FetcherUnavailableError{Fetcher: f.Backend, Reason: f.Reason}
}

// Clone always returns a FetcherUnavailableError.
func (f *UnavailableFetcher) Clone(context.Context, manifest.Locator, string) error {
	return f.Available()
}
