// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fabriclabs/workspace/internal/probe"
	"github.com/fabriclabs/workspace/internal/workspace"

	"github.com/charmbracelet/glamour"
)

const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
	// formatPretty is markdown rendered for the terminal by glamour.
	formatPretty = "pretty"
)

var reportFormats = []string{formatText, formatJSON, formatMarkdown, formatPretty}

// renderReport writes report to w in the requested format.
func renderReport(w io.Writer, report *workspace.Report, format string) error {
	switch format {
	case formatText, "":
		renderReportText(w, report)
		return nil
	case formatJSON:
		return writeJSON(w, report)
	case formatMarkdown:
		_, err := io.WriteString(w, reportMarkdown(report))
		return err
	case formatPretty:
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		out, err := r.Render(reportMarkdown(report))
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(reportFormats, ", "))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderReportText(w io.Writer, report *workspace.Report) {
	writeLine(w, "%s %s", TitleStyle.Render("Workspace run"), SubtitleStyle.Render(report.RunID))
	writeLine(w, "%s %s", SubtitleStyle.Render("root:"), report.Root)
	writeLine(w, "%s %s", SubtitleStyle.Render("manifest:"), report.Manifest)
	for _, d := range report.Diagnostics {
		writeLine(w, "%s %s", WarningStyle.Render(string(d.Severity)+":"), d.Error())
	}
	writeLine(w, "")

	if len(report.Items) == 0 {
		writeLine(w, "%s", SubtitleStyle.Render("No repositories declared."))
	}
	for _, item := range report.Items {
		line := fmt.Sprintf("%s %-24s %-8s", outcomeMark(item.Outcome), KeyStyle.Render(string(item.ID)), item.Outcome)
		switch item.Outcome {
		case workspace.OutcomePassed:
			line += fmt.Sprintf(" %s %s %s", shortCommit(item.Commit), item.Provenance, SubtitleStyle.Render(item.Duration.Round(time.Millisecond).String()))
		default:
			line += " " + item.Reason
		}
		writeLine(w, "%s", line)
		if item.Validation != nil {
			for _, c := range item.Validation.Failures() {
				writeLine(w, "%s", detailStyle.Render(fmt.Sprintf("%s: %s", c.Artifact, c.Message)))
			}
		}
	}

	if lib := report.Library; lib != nil {
		writeLine(w, "")
		line := fmt.Sprintf("%s library %s %s", outcomeMark(lib.Outcome), KeyStyle.Render(lib.Path), lib.Outcome)
		if lib.Reason != "" {
			line += " " + lib.Reason
		}
		writeLine(w, "%s", line)
		if lib.Validation != nil {
			for _, c := range lib.Validation.Failures() {
				writeLine(w, "%s", detailStyle.Render(fmt.Sprintf("%s: %s", c.Artifact, c.Message)))
			}
		}
		if lib.Probe != nil {
			renderProbeFailures(w, lib.Probe)
		}
	}

	passed, failedCount, skipped := report.Counts()
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", passed, failedCount, skipped)
	if report.ManifestSkipped > 0 {
		summary += fmt.Sprintf(" (%d manifest entries ignored)", report.ManifestSkipped)
	}
	writeLine(w, "")
	if report.Passed() {
		writeLine(w, "%s", SuccessStyle.Render(summary))
	} else {
		writeLine(w, "%s", ErrorStyle.Render(summary))
	}
}

func renderProbeFailures(w io.Writer, res *probe.Result) {
	for _, tr := range res.Types {
		if tr.Status == probe.StatusSkipped {
			writeLine(w, "%s", detailStyle.Render(fmt.Sprintf("%s: skipped (%s)", tr.Name, tr.Reason)))
			continue
		}
		for _, c := range tr.Checks {
			if c.Status == probe.StatusFailed {
				writeLine(w, "%s", detailStyle.Render(fmt.Sprintf("%s %s: %s", tr.Name, c.Check, c.Message)))
			}
		}
	}
}

func reportMarkdown(report *workspace.Report) string {
	var sb strings.Builder
	passed, failedCount, skipped := report.Counts()

	fmt.Fprintf(&sb, "# Workspace run `%s`\n\n", report.RunID)
	fmt.Fprintf(&sb, "- Root: `%s`\n- Manifest: `%s`\n- Result: **%d passed, %d failed, %d skipped**\n",
		report.Root, report.Manifest, passed, failedCount, skipped)
	if report.ManifestSkipped > 0 {
		fmt.Fprintf(&sb, "- Ignored manifest entries: %d\n", report.ManifestSkipped)
	}
	if len(report.Diagnostics) > 0 {
		sb.WriteString("\n## Manifest diagnostics\n\n")
		for _, d := range report.Diagnostics {
			fmt.Fprintf(&sb, "- **%s** `%s`: %s\n", d.Severity, d.Code, d.Error())
		}
	}

	sb.WriteString("\n## Repositories\n\n")
	if len(report.Items) == 0 {
		sb.WriteString("_No repositories declared._\n")
	} else {
		sb.WriteString("| Repository | Outcome | Commit | Provenance | Details |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, item := range report.Items {
			details := item.Reason
			if len(item.FailedArtifacts) > 0 {
				details = "missing or invalid: " + strings.Join(item.FailedArtifacts, ", ")
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				item.ID, item.Outcome, shortCommit(item.Commit), item.Provenance, escapeCell(details))
		}
	}

	if lib := report.Library; lib != nil {
		sb.WriteString("\n## Library\n\n")
		fmt.Fprintf(&sb, "`%s`: **%s**", lib.Path, lib.Outcome)
		if lib.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", lib.Reason)
		}
		sb.WriteString("\n")
		if lib.Probe != nil && len(lib.Probe.Types) > 0 {
			sb.WriteString("\n| Type | Status | Notes |\n|---|---|---|\n")
			for _, tr := range lib.Probe.Types {
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", tr.Name, tr.Status, escapeCell(probeNotes(tr)))
			}
		}
	}
	return sb.String()
}

func probeNotes(tr probe.TypeResult) string {
	if tr.Reason != "" {
		return tr.Reason
	}
	var failures []string
	for _, c := range tr.Checks {
		if c.Status == probe.StatusFailed {
			failures = append(failures, c.Check+": "+c.Message)
		}
	}
	return strings.Join(failures, "; ")
}

func outcomeMark(o workspace.Outcome) string {
	switch o {
	case workspace.OutcomePassed:
		return SuccessStyle.Render("✓")
	case workspace.OutcomeFailed:
		return ErrorStyle.Render("✗")
	default:
		return WarningStyle.Render("-")
	}
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
