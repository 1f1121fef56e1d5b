// SPDX-License-Identifier: MPL-2.0

package clone

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// trySSHAuth loads the first usable unencrypted key from ~/.ssh. A nil
// result lets go-git fall back to the SSH agent.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(homeDir, ".ssh", name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}

	return nil
}

// tryHTTPAuth builds token basic auth from GITHUB_TOKEN, GITLAB_TOKEN or
// GIT_TOKEN, in that order. Public repositories need none.
func tryHTTPAuth() transport.AuthMethod {
	tokens := []struct {
		env      string
		username string
	}{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}

	for _, tok := range tokens {
		if v := os.Getenv(tok.env); v != "" {
			return &http.BasicAuth{Username: tok.username, Password: v}
		}
	}

	return nil
}
