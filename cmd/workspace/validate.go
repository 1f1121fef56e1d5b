// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/fabriclabs/workspace/internal/structure"
	"github.com/fabriclabs/workspace/pkg/types"

	"github.com/spf13/cobra"
)

func newValidateCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var (
		name    string
		dirs    []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check that a checkout has the expected structure",
		Long: `Check one directory without cloning anything.

The directory must contain the package descriptor and the entry point it
declares. --name requires the descriptor name to match exactly and every --dir
must exist at the top level, in addition to the directories required by config.

Examples:
  workspace validate ./actor-repository
  workspace validate ./fabric --name @fabric/core --dir types --dir services`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.newSession(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}

			path := types.FilesystemPath(args[0])
			if err := path.Validate(); err != nil {
				return usage(err)
			}

			res, err := structure.Validate(path, sess.validationOptions().With(name, dirs))
			if err != nil {
				return err
			}

			if jsonOut {
				if err := writeJSON(app.stdout, res); err != nil {
					return err
				}
			} else {
				renderValidation(app, res)
			}
			if !res.Passed() {
				return failed("%d structural checks failed", len(res.Failures()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "expected descriptor name")
	cmd.Flags().StringArrayVar(&dirs, "dir", nil, "required top-level directory (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output the result as JSON")
	return cmd
}

func renderValidation(app *App, res *structure.Result) {
	writeLine(app.stdout, "%s %s", TitleStyle.Render("Structure"), SubtitleStyle.Render(string(res.Path)))
	for _, c := range res.Checks {
		mark := SuccessStyle.Render("✓")
		line := fmt.Sprintf("%s %-12s %s", mark, c.Kind, c.Artifact)
		if !c.Passed {
			mark = ErrorStyle.Render("✗")
			line = fmt.Sprintf("%s %-12s %s: %s", mark, c.Kind, c.Artifact, c.Message)
		}
		writeLine(app.stdout, "%s", line)
	}
	if res.Passed() {
		writeLine(app.stdout, "%s", SuccessStyle.Render("structure ok"))
	}
}
