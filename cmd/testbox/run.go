// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"testbox-cli/internal/app/execute"
	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/provision"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [--rust-version <v>] [--clean] [-- <test args>...]",
		Short: "Provision the environment and run the tests",
		Long: `Provision the test environment and run the test command inside it.

testbox consumes --rust-version and --clean; every other argument, and
everything after "--", is appended to the test command unchanged. Global
flags (-v, --config, --engine) are honored when they come first.

The exit code is the exit code of the test command.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			globals, rest := splitGlobalFlags(args)
			if err := cmd.Root().PersistentFlags().Parse(globals); err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			return app.runTests(cmd.Context(), rest)
		},
	}
}

// pipeline holds the services of one run or watch invocation.
type pipeline struct {
	session *session
	manager *provision.Manager
	store   *cachestore.EngineStore
	orch    *execute.Orchestrator
}

// newPipeline selects the engine and builds the services for s. Callers
// resolve their arguments first so that argument errors win over engine errors.
func (a *App) newPipeline(s *session) (*pipeline, error) {
	engine, err := a.engine(s)
	if err != nil {
		return nil, err
	}
	store := a.store(s, engine)
	orch, err := a.orchestrator(s, engine, store)
	if err != nil {
		return nil, err
	}
	return &pipeline{session: s, manager: a.manager(s, store), store: store, orch: orch}, nil
}

// runTests is the run pipeline: resolve, provision, execute.
func (a *App) runTests(ctx context.Context, args []string) error {
	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	rc, err := config.Resolve(args, s.defaults)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	p, err := a.newPipeline(s)
	if err != nil {
		return err
	}
	return p.run(ctx, rc)
}

// run provisions the environment for rc and runs the test command once.
func (p *pipeline) run(ctx context.Context, rc config.RunConfig) error {
	result, err := p.manager.Provision(ctx, rc)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return &ExitError{Code: ExitInterrupted, Err: err}
		}
		return err
	}
	if result.Action == provision.ActionBuilt && len(result.Pruned) > 0 {
		p.session.logger.Debug("pruned superseded environments", "count", len(result.Pruned))
	}

	code, err := p.orch.Run(ctx, rc, result.Identity)
	if errors.Is(ctx.Err(), context.Canceled) {
		return &ExitError{Code: ExitInterrupted, Err: ctx.Err()}
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: int(code)}
	}
	return nil
}
