// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	InvalidArgumentsId Id = iota + 1
	ConfigLoadFailedId
	ContainerEngineNotFoundId
	DefinitionNotFoundId
	ImageBuildFailedId
	ContainerLaunchFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // links to the relevant engine or cargo documentation
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue page with the given glamour style ("dark", "light",
// "notty" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	invalidArgumentsIssue = &Issue{
		id: InvalidArgumentsId,
		mdMsg: `
# Invalid arguments

testbox only interprets a few of its own flags. Everything else is handed to
the test command inside the container.

## Recognized flags
- ` + "`--rust-version <v>`" + ` or ` + "`--rust-version=<v>`" + ` selects the toolchain line
- ` + "`--clean`" + ` purges the cache of that line before running
- ` + "`--`" + ` forwards every following argument verbatim

## Things you can try
~~~
$ testbox run --rust-version 1.78 -- --nocapture
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The config file could not be parsed or does not match the schema.

## Things you can try
- Show the file testbox reads:
~~~
$ testbox config path
~~~
- Regenerate a default file with ` + "`testbox config init`" + ` after moving the broken one away`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available

testbox needs Docker or Podman to build and run the test environment.

## Things you can try
- Check that the daemon is running:
~~~
$ docker version
~~~
- Or select Podman explicitly:
~~~
$ testbox --engine podman run
~~~`,
		docLinks: []HttpLink{"https://docs.docker.com/engine/install/", "https://podman.io/docs/installation"},
	}

	definitionNotFoundIssue = &Issue{
		id: DefinitionNotFoundId,
		mdMsg: `
# Environment definition not found

The environment image is keyed by the content of the definition file, so the
file must exist and be readable.

## Things you can try
- Create ` + "`Dockerfile.test`" + ` in the project root, starting from an official image:
~~~dockerfile
ARG RUST_VERSION=stable
FROM rust:${RUST_VERSION}
~~~
- Or point ` + "`definition_file`" + ` at an existing file in the config`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Failed to build the environment image

The container engine reported a build failure. Its output is shown above.
Nothing was pruned; previously cached images of this version line remain.

## Things you can try
- Check that the base image exists for the selected version
- Rebuild from scratch:
~~~
$ testbox run --clean
~~~`,
	}

	containerLaunchFailedIssue = &Issue{
		id: ContainerLaunchFailedId,
		mdMsg: `
# Failed to launch the test container

The environment is ready but the engine could not start the container.

## Things you can try
- Run with ` + "`--verbose`" + ` to see the exact engine command
- Check the engine can mount the project directory (rootless Podman and
  Docker Desktop restrict shared paths)`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

The engine or the filesystem refused access. Files written by the container
may be owned by root.

## Things you can try
- Add your user to the ` + "`docker`" + ` group, or use rootless Podman
- Remove a root-owned artifact directory with elevated rights`,
	}

	issues = map[Id]*Issue{
		invalidArgumentsIssue.Id():        invalidArgumentsIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		definitionNotFoundIssue.Id():      definitionNotFoundIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		containerLaunchFailedIssue.Id():   containerLaunchFailedIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
