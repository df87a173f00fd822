// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"testbox-cli/internal/app/execute"
)

func newStatusCommand(app *App) *cobra.Command {
	var version string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the environment a run would use",
		Long: `Show the environment identity for the current definition, whether its image
is cached, which images a rebuild would prune, the cache volume, the artifact
directory and the exact engine command a run would execute. Nothing is built
or removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.status(cmd.Context(), version)
		},
	}

	statusCmd.Flags().StringVar(&version, "rust-version", "", "version line to inspect (default: resolved like run)")

	return statusCmd
}

func (a *App) status(ctx context.Context, version string) error {
	s, rc, err := a.resolveVersion(ctx, version)
	if err != nil {
		return err
	}

	engine, err := a.engine(s)
	if err != nil {
		return err
	}
	store := a.store(s, engine)

	plan, err := a.manager(s, store).Plan(ctx, rc)
	if err != nil {
		return err
	}

	orch, err := a.orchestrator(s, engine, store)
	if err != nil {
		return err
	}
	argv, err := orch.Command(rc, plan.Identity)
	if err != nil {
		return err
	}

	cached := WarningStyle.Render("no (next run builds it)")
	if plan.Cached {
		cached = SuccessStyle.Render("yes")
	}
	stale := SubtitleStyle.Render("(none)")
	if len(plan.StaleTags) > 0 {
		stale = strings.Join(plan.StaleTags, ", ")
	}

	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("Environment"))
	fmt.Fprintln(w)
	printField(w, "engine", engine.Name())
	printField(w, "version", fmt.Sprintf("%s %s", rc.VersionParameter(), SubtitleStyle.Render(versionOrigin(version, s))))
	printField(w, "definition", plan.DefinitionPath)
	printField(w, "image", plan.Identity.Tag())
	printField(w, "cached", cached)
	printField(w, "stale", stale)
	printField(w, "volume", plan.VolumeName)
	printField(w, "artifacts", plan.ArtifactDirectory)
	printField(w, "command", execute.FormatCommand(argv))

	return nil
}

func versionOrigin(flagValue string, s *session) string {
	if flagValue != "" {
		return "(from --rust-version)"
	}
	return fmt.Sprintf("(from %s)", s.defaults.VersionSource)
}

func printField(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", CmdStyle.Render(fmt.Sprintf("%-11s", key+":")), value)
}
