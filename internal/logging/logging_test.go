// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"text", func(t *testing.T, out string) {
			if !strings.Contains(out, "cloned") || !strings.Contains(out, "id=actor") {
				t.Errorf("text output = %q", out)
			}
		}},
		{"logfmt", func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=cloned") || !strings.Contains(out, "id=actor") {
				t.Errorf("logfmt output = %q", out)
			}
		}},
		{"json", func(t *testing.T, out string) {
			var line map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
				t.Fatalf("json output %q did not parse: %v", out, err)
			}
			if line["msg"] != "cloned" || line["id"] != "actor" {
				t.Errorf("json line = %v", line)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := New(&buf, Options{Format: tt.format})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			logger.Info("cloned", "id", "actor")
			tt.check(t, buf.String())
		})
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "WARN", Format: "logfmt"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug lines should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, Options{Level: "loud"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("New() with unknown format should fail")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	Discard().Error("dropped")
}
