// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fabriclabs/workspace/internal/issue"
	"github.com/fabriclabs/workspace/internal/provenance"
	"github.com/fabriclabs/workspace/pkg/manifest"

	"github.com/spf13/cobra"
)

// provenanceEntry pairs a record with its key for listing.
type provenanceEntry struct {
	Key string `json:"key"`
	provenance.Record
}

func newProvenanceCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Inspect recorded provenance",
		Long: `Show where each provisioned repository came from.

Records are written after a repository is cloned and passes validation.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every provenance record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, app, rootFlags, func(ctx context.Context, store provenance.Store) error {
				keys, err := store.Keys(ctx)
				if err != nil {
					return err
				}
				entries := make([]provenanceEntry, 0, len(keys))
				for _, key := range keys {
					rec, ok, err := store.Get(ctx, key)
					if err != nil {
						return err
					}
					if ok {
						entries = append(entries, provenanceEntry{Key: key, Record: rec})
					}
				}
				if jsonOut {
					return writeJSON(app.stdout, entries)
				}
				if len(entries) == 0 {
					writeLine(app.stdout, "%s", SubtitleStyle.Render("No provenance recorded."))
				}
				for _, e := range entries {
					renderProvenance(app, e)
				}
				return nil
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show the provenance record of one repository",
		Long: `Show the provenance record of one repository. The argument is either the
manifest identity (actor) or the record key (actor-repository).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := recordKey(args[0])
			return withStore(cmd, app, rootFlags, func(ctx context.Context, store provenance.Store) error {
				rec, ok, err := store.Get(ctx, key)
				if err != nil {
					return err
				}
				if !ok {
					return failed("no provenance recorded for %s", key)
				}
				if jsonOut {
					return writeJSON(app.stdout, rec)
				}
				renderProvenance(app, provenanceEntry{Key: key, Record: rec})
				return nil
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.AddCommand(list, get)
	return cmd
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, fn func(context.Context, provenance.Store) error) error {
	sess, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return err
	}
	store, err := sess.openStore()
	if err != nil {
		return usage(err)
	}
	defer sess.closeStore(store)

	if err := store.Available(); err != nil {
		app.renderIssue(issue.ProvenanceUnavailableId)
		return failed("%v", err)
	}
	return fn(cmd.Context(), store)
}

func recordKey(arg string) string {
	if strings.HasSuffix(arg, manifest.RepositorySuffix) {
		return arg
	}
	return provenance.KeyFor(manifest.RepositoryID(arg))
}

func renderProvenance(app *App, e provenanceEntry) {
	writeLine(app.stdout, "%s", KeyStyle.Render(e.Key))
	writeLine(app.stdout, "%s", detailStyle.Render("link:      "+e.Link.String()))
	writeLine(app.stdout, "%s", detailStyle.Render("httpsLink: "+e.HTTPSLink.String()))
	writeLine(app.stdout, "%s", detailStyle.Render(fmt.Sprintf("cloned:    %t", e.Cloned)))
	writeLine(app.stdout, "%s", detailStyle.Render("path:      "+e.Path))
	if e.Commit != "" {
		writeLine(app.stdout, "%s", detailStyle.Render("commit:    "+e.Commit))
	}
	writeLine(app.stdout, "%s", detailStyle.Render("recorded:  "+time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)))
}
