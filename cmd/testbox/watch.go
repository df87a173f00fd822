// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"testbox-cli/internal/config"
	"testbox-cli/internal/watch"
)

func newWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [--rust-version <v>] [--clean] [-- <test args>...]",
		Short: "Re-run the tests whenever project sources change",
		Long: `Run the tests once, then again each time a Rust source file, a Cargo
manifest, the toolchain file or the environment definition changes.

Arguments are those of "testbox run". --clean applies to the first run only.
A change to the environment definition rebuilds the image before the next run.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			globals, rest := splitGlobalFlags(args)
			if err := cmd.Root().PersistentFlags().Parse(globals); err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			return app.watchTests(cmd.Context(), rest)
		},
	}
}

// watchTests runs the pipeline once and then after every batch of changes.
// Test failures are reported and watching continues.
func (a *App) watchTests(ctx context.Context, args []string) error {
	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}

	first, err := config.Resolve(args, s.defaults)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	again, err := config.Resolve(withoutClean(args), s.defaults)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	p, err := a.newPipeline(s)
	if err != nil {
		return err
	}

	patterns, ignores, err := a.watchPatterns(p, first.ProjectRoot())
	if err != nil {
		return err
	}

	report := func(err error) error {
		var exitErr *ExitError
		switch {
		case err == nil:
			fmt.Fprintln(a.stderr, SuccessStyle.Render("tests passed"))
		case errors.As(err, &exitErr) && exitErr.Code == ExitInterrupted:
			return err
		case errors.As(err, &exitErr) && exitErr.Err == nil:
			fmt.Fprintln(a.stderr, WarningStyle.Render(fmt.Sprintf("tests exited with code %d", exitErr.Code)))
		default:
			fmt.Fprintln(a.stderr, WarningStyle.Render(formatErrorForDisplay(err, a.verbose)))
		}
		return nil
	}

	if err := report(p.run(ctx, first)); err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Patterns:    patterns,
		Ignore:      ignores,
		BaseDir:     first.ProjectRoot(),
		ClearScreen: a.stdoutIsTerminal(),
		Stdout:      a.stdout,
		Logger:      p.session.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			p.session.logger.Info("change detected", "files", len(changed))
			return report(p.run(ctx, again))
		},
	})
	if err != nil {
		return err
	}

	p.session.logger.Info("watching for changes", "root", first.ProjectRoot())
	if err := w.Run(ctx); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return &ExitError{Code: ExitInterrupted, Err: ctx.Err()}
	}
	return nil
}

// watchPatterns adds the definition file to the default patterns and
// excludes the artifact directory.
func (a *App) watchPatterns(p *pipeline, root string) (patterns, ignores []string, err error) {
	patterns = watch.DefaultPatterns()
	if rel, relErr := filepath.Rel(root, p.manager.DefinitionPath(root)); relErr == nil && !strings.HasPrefix(rel, "..") {
		patterns = append(patterns, filepath.ToSlash(rel))
	}

	artifactDir, err := p.store.ArtifactDirectory(root)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitConfigError, Err: err}
	}
	if rel, relErr := filepath.Rel(root, artifactDir); relErr == nil {
		ignores = append(ignores, filepath.ToSlash(rel)+"/**")
	}
	return patterns, ignores, nil
}

func (a *App) stdoutIsTerminal() bool {
	f, ok := a.stdout.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// withoutClean drops --clean flags that precede the separator.
func withoutClean(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == config.Separator:
			return append(out, args[i:]...)
		case arg == config.RustVersionFlag && i+1 < len(args):
			out = append(out, arg, args[i+1])
			i++
		case arg == config.CleanFlag || strings.HasPrefix(arg, config.CleanFlag+"="):
		default:
			out = append(out, arg)
		}
	}
	return out
}
