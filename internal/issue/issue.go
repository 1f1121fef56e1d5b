// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ManifestNotFoundId Id = iota + 1
	ManifestInvalidId
	FetcherUnavailableId
	CloneFailedId
	ValidationFailedId
	ProvenanceUnavailableId
	ConfigLoadFailedId
	RuntimeUnavailableId
	LibraryMissingId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a catalogued failure with Markdown guidance rendered for the terminal.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No manifest found

The manifest file does not exist, so the workspace was treated as empty and
nothing was provisioned.

## Things you can try
- Pass the manifest explicitly:
~~~
$ workspace provision --manifest ./workspace.json
~~~
- Or set ` + "`manifest`" + ` in your workspace config file.

## Example manifest
~~~json
{
  "repositories": {
    "actor": {
      "link": "git@github.com:fabric/actor.git",
      "httpsLink": "https://github.com/fabric/actor.git",
      "name": "@fabric/actor",
      "directories": ["types"]
    }
  }
}
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# The manifest could not be parsed

The file is not valid JSON, or its ` + "`repositories`" + ` field is not an object.
The workspace was treated as empty.

## Things you can try
- Check the file with:
~~~
$ workspace manifest check
~~~
- Each entry needs at least a ` + "`link`" + `. Entries without one are skipped.`,
		extLinks: []HttpLink{"https://www.json.org/json-en.html"},
	}

	fetcherUnavailableIssue = &Issue{
		id: FetcherUnavailableId,
		mdMsg: `
# No fetch mechanism is available

Every repository was skipped and existing clones were left untouched.

## Things you can try
- Use the built-in fetcher:
~~~
$ workspace provision --fetcher go-git
~~~
- Or install ` + "`git`" + ` and make sure it is on your PATH.`,
		extLinks: []HttpLink{"https://git-scm.com/downloads"},
	}

	cloneFailedIssue = &Issue{
		id: CloneFailedId,
		mdMsg: `
# A repository could not be cloned

The partial clone was discarded.

## Things you can try
- Check that the link is reachable from this machine.
- For SSH links, make sure an agent or a key in ~/.ssh is available.
- For HTTPS links to private repositories, export ` + "`GITHUB_TOKEN`" + `, ` + "`GITLAB_TOKEN`" + ` or ` + "`GIT_TOKEN`" + `.`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Structural validation failed

The clone exists but is missing required artifacts. Provenance was not recorded.

## Things you can try
- Inspect the failed artifacts:
~~~
$ workspace validate <id>
~~~
- Check the ` + "`name`" + ` and ` + "`directories`" + ` declared for the entry in the manifest.`,
	}

	provenanceUnavailableIssue = &Issue{
		id: ProvenanceUnavailableId,
		mdMsg: `
# The provenance store is unavailable

Repositories were still provisioned, but no records were written.

## Things you can try
- Check that ` + "`stores_dir`" + ` is writable.
- Select another backend:
~~~
$ workspace provision --provenance memory
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the workspace config

## Things you can try
- Print the effective configuration:
~~~
$ workspace config show
~~~
- Generate a fresh config file:
~~~
$ workspace config dump --format cue > workspace.cue
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	runtimeUnavailableIssue = &Issue{
		id: RuntimeUnavailableId,
		mdMsg: `
# The probe runtime is not available

The capability probe was skipped.

## Things you can try
- Install Node.js and make sure ` + "`node`" + ` is on your PATH.
- Or replay a saved observation:
~~~
$ workspace probe --observation observation.json
~~~`,
		extLinks: []HttpLink{"https://nodejs.org/"},
	}

	libraryMissingIssue = &Issue{
		id: LibraryMissingId,
		mdMsg: `
# The library checkout is missing

## Things you can try
- Point ` + "`library.path`" + ` at the library checkout.
- Set ` + "`library.required: false`" + ` to treat a missing checkout as skipped.`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():      manifestNotFoundIssue,
		manifestInvalidIssue.Id():       manifestInvalidIssue,
		fetcherUnavailableIssue.Id():    fetcherUnavailableIssue,
		cloneFailedIssue.Id():           cloneFailedIssue,
		validationFailedIssue.Id():      validationFailedIssue,
		provenanceUnavailableIssue.Id(): provenanceUnavailableIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		runtimeUnavailableIssue.Id():    runtimeUnavailableIssue,
		libraryMissingIssue.Id():        libraryMissingIssue,
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the message, plus any links, with the glamour style at stylePath
// (a built-in style name such as "dark" or "notty" also works).
func (i *Issue) Render(stylePath string) (string, error) {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <")
			sb.WriteString(string(link))
			sb.WriteString(">\n")
		}
	}
	return render(sb.String(), stylePath)
}

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
