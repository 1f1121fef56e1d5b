// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/fabriclabs/workspace/internal/clone"
	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/pkg/manifest"
	"github.com/fabriclabs/workspace/pkg/types"

	"github.com/spf13/cobra"
)

type (
	manifestListing struct {
		Path         string                 `json:"path"`
		Repositories []manifestEntry        `json:"repositories"`
		Skipped      int                    `json:"skipped"`
		Diagnostics  []manifestDiagnosticJS `json:"diagnostics,omitempty"`
	}

	manifestEntry struct {
		manifest.Declaration
		Path string `json:"path"`
	}

	manifestDiagnosticJS struct {
		Severity manifest.Severity `json:"severity"`
		Code     string            `json:"code"`
		Message  string            `json:"message"`
	}
)

func newManifestCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var (
		manifestPath string
		jsonOut      bool
	)

	load := func(cmd *cobra.Command) (manifest.LoadResult, string, error) {
		sess, err := app.newSession(cmd.Context(), rootFlags)
		if err != nil {
			return manifest.LoadResult{}, "", err
		}
		if manifestPath != "" {
			sess.cfg.Manifest = manifestPath
		}
		return manifest.Load(sess.cfg.ManifestPath()), sess.cfg.RepositoriesPath(), nil
	}

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "List the repositories declared in the manifest",
		Long: `List every declared repository with its locators and clone directory.

Problems found while loading are shown as diagnostics. Listing never fails on
them; use 'workspace manifest check' for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, root, err := load(cmd)
			if err != nil {
				return err
			}
			listing := newManifestListing(res, root)
			if jsonOut {
				return writeJSON(app.stdout, listing)
			}
			renderManifest(app, listing)
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Fail when the manifest has loading problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, _, err := load(cmd)
			if err != nil {
				return err
			}
			if len(res.Diagnostics) == 0 {
				writeLine(app.stdout, "%s", SuccessStyle.Render(fmt.Sprintf("%s: %d repositories declared", res.Manifest.Path, res.Manifest.Len())))
				return nil
			}
			for _, d := range res.Diagnostics {
				writeLine(app.stdout, "%s %s", WarningStyle.Render(string(d.Severity)+":"), d.Error())
			}
			if hasCode(res.Diagnostics, manifest.CodeNotFound) {
				app.renderIssue(issue.ManifestNotFoundId)
			}
			return failed("manifest has %d problems", len(res.Diagnostics))
		},
	}

	cmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "manifest file (default <root>/stores/meta.json)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output the listing as JSON")
	cmd.AddCommand(check)
	return cmd
}

func newManifestListing(res manifest.LoadResult, root string) manifestListing {
	m := res.Manifest
	listing := manifestListing{Path: m.Path, Skipped: m.Skipped, Repositories: make([]manifestEntry, 0, m.Len())}
	for _, id := range m.IDs() {
		decl, _ := m.Get(id)
		listing.Repositories = append(listing.Repositories, manifestEntry{
			Declaration: decl,
			Path:        string(clone.PathFor(types.FilesystemPath(root), id)),
		})
	}
	for _, d := range res.Diagnostics {
		listing.Diagnostics = append(listing.Diagnostics, manifestDiagnosticJS{Severity: d.Severity, Code: d.Code, Message: d.Error()})
	}
	return listing
}

func renderManifest(app *App, listing manifestListing) {
	writeLine(app.stdout, "%s %s", TitleStyle.Render("Manifest"), SubtitleStyle.Render(listing.Path))
	if len(listing.Repositories) == 0 {
		writeLine(app.stdout, "%s", SubtitleStyle.Render("No repositories declared."))
	}
	for _, e := range listing.Repositories {
		writeLine(app.stdout, "  %s", KeyStyle.Render(string(e.ID)))
		writeLine(app.stdout, "%s", detailStyle.Render("link:  "+e.Link.String()))
		if e.HTTPSLink != "" && e.HTTPSLink != e.Link {
			writeLine(app.stdout, "%s", detailStyle.Render("fetch: "+e.HTTPSLink.String()))
		}
		if e.Name != "" {
			writeLine(app.stdout, "%s", detailStyle.Render("name:  "+e.Name))
		}
		if len(e.Directories) > 0 {
			writeLine(app.stdout, "%s", detailStyle.Render("dirs:  "+strings.Join(e.Directories, ", ")))
		}
		writeLine(app.stdout, "%s", detailStyle.Render("path:  "+e.Path))
	}
	for _, d := range listing.Diagnostics {
		writeLine(app.stdout, "%s %s", WarningStyle.Render(string(d.Severity)+":"), d.Message)
	}
}

func hasCode(diags []manifest.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}
