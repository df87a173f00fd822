// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"testbox-cli/internal/config"
)

func newCleanCommand(app *App) *cobra.Command {
	var version string

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the cached state of a version line",
		Long: `Remove the registry cache volume and every environment image of a version
line, and the project's artifact directory. Each removal is attempted even if
another fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.clean(cmd.Context(), version)
		},
	}

	cleanCmd.Flags().StringVar(&version, "rust-version", "", "version line to clean (default: resolved like run)")

	return cleanCmd
}

func (a *App) clean(ctx context.Context, version string) error {
	s, rc, err := a.resolveVersion(ctx, version)
	if err != nil {
		return err
	}

	engine, err := a.engine(s)
	if err != nil {
		return err
	}
	store := a.store(s, engine)

	errs := a.manager(s, store).Clean(ctx, rc.VersionParameter(), rc.ProjectRoot())
	if len(errs) > 0 {
		return fmt.Errorf("clean finished with %d error(s): %w", len(errs), errors.Join(errs...))
	}

	fmt.Fprintf(a.stdout, "%s cleaned version %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(rc.VersionParameter()))
	return nil
}

// resolveVersion opens a session and resolves the version parameter the way
// run does, with an optional explicit override.
func (a *App) resolveVersion(ctx context.Context, version string) (*session, config.RunConfig, error) {
	s, err := a.newSession(ctx)
	if err != nil {
		return nil, config.RunConfig{}, err
	}

	var args []string
	if version != "" {
		args = []string{config.RustVersionFlag, version}
	}
	rc, err := config.Resolve(args, s.defaults)
	if err != nil {
		return nil, config.RunConfig{}, &ExitError{Code: ExitConfigError, Err: err}
	}
	return s, rc, nil
}
