// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// observationMarker prefixes the observation line on the script's stdout so
// that output printed by the library while loading is ignored.
const observationMarker = "__workspace_probe__"

//go:embed probe.js
var probeScript []byte

// NodeInspector loads the library in a Node.js process.
type NodeInspector struct {
	// Binary is the node executable name or path. Defaults to "node".
	Binary string
}

// Name returns "node".
func (n *NodeInspector) Name() string { return "node" }

// Available reports whether the node executable is on PATH.
func (n *NodeInspector) Available(context.Context) error {
	if _, err := exec.LookPath(n.binary()); err != nil {
		return &RuntimeUnavailableError{Runtime: n.binary(), Reason: err.Error()}
	}
	return nil
}

// Inspect runs the embedded inspection script against modulePath.
func (n *NodeInspector) Inspect(ctx context.Context, modulePath string, surface Surface) (*Observation, error) {
	absPath, err := filepath.Abs(modulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	input, err := json.Marshal(surface)
	if err != nil {
		return nil, fmt.Errorf("failed to encode surface: %w", err)
	}

	script, err := os.CreateTemp("", "workspace-probe-*.js")
	if err != nil {
		return nil, fmt.Errorf("failed to write probe script: %w", err)
	}
	defer func() { _ = os.Remove(script.Name()) }()
	if _, err := script.Write(probeScript); err != nil {
		_ = script.Close()
		return nil, fmt.Errorf("failed to write probe script: %w", err)
	}
	if err := script.Close(); err != nil {
		return nil, fmt.Errorf("failed to write probe script: %w", err)
	}

	cmd := exec.CommandContext(ctx, n.binary(), script.Name(), absPath)
	cmd.Dir = absPath
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, &RuntimeUnavailableError{Runtime: n.binary(), Reason: execErr.Error()}
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("probe script failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("probe script failed: %w", err)
	}

	return parseObservation(stdout.Bytes())
}

func (n *NodeInspector) binary() string {
	if n.Binary == "" {
		return "node"
	}
	return n.Binary
}

// parseObservation finds the marked line in the script output.
func parseObservation(output []byte) (*Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var line string
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(scanner.Text(), observationMarker); ok {
			line = rest
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read probe output: %w", err)
	}
	if line == "" {
		return nil, errors.New("probe script produced no observation")
	}

	var obs Observation
	if err := json.Unmarshal([]byte(line), &obs); err != nil {
		return nil, fmt.Errorf("failed to decode probe output: %w", err)
	}
	return &obs, nil
}
