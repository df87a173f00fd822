// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"testbox-cli/internal/app/execute"
	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/container"
	"testbox-cli/internal/issue"
	"testbox-cli/internal/provision"
)

type (
	// EngineFactory returns a container engine for the preferred type. The
	// empty type auto-detects.
	EngineFactory func(preferred container.EngineType) (container.Engine, error)

	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and builds
	// its per-invocation services through it.
	App struct {
		Config    config.Provider
		NewEngine EngineFactory
		Getenv    func(string) string
		Getwd     func() (string, error)

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		flags   rootFlags
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    config.Provider
		NewEngine EngineFactory
		Getenv    func(string) string
		Getwd     func() (string, error)
		Stdin     io.Reader
		Stdout    io.Writer
		Stderr    io.Writer
	}

	rootFlags struct {
		verbose    bool
		configPath string
		engine     string
	}

	// session holds the services of one invocation.
	session struct {
		cfg      *config.Config
		defaults config.Defaults
		logger   *log.Logger
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:    deps.Config,
		NewEngine: deps.NewEngine,
		Getenv:    deps.Getenv,
		Getwd:     deps.Getwd,
		stdin:     deps.Stdin,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.NewEngine == nil {
		app.NewEngine = func(preferred container.EngineType) (container.Engine, error) {
			return container.NewEngine(preferred)
		}
	}
	if app.Getenv == nil {
		app.Getenv = os.Getenv
	}
	if app.Getwd == nil {
		app.Getwd = os.Getwd
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// newSession loads settings and project defaults and sets up logging.
func (a *App) newSession(ctx context.Context) (*session, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, &ExitError{Code: ExitConfigError, Err: err}
	}

	a.verbose = a.flags.verbose || cfg.UI.Verbose

	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cwd, err := a.Getwd()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("determine project root").
			Wrap(err).
			BuildError()
	}

	defaults, err := config.LoadDefaults(cfg, cwd, a.Getenv)
	if err != nil {
		return nil, &ExitError{Code: ExitConfigError, Err: err}
	}
	logger.Debug("resolved defaults",
		"project", defaults.ProjectRoot,
		"version", defaults.Version,
		"source", defaults.VersionSource)

	return &session{cfg: cfg, defaults: defaults, logger: logger}, nil
}

// engine selects the container engine; --engine overrides the setting.
func (a *App) engine(s *session) (container.Engine, error) {
	preferred := a.flags.engine
	if preferred == "" {
		preferred = string(s.cfg.ContainerEngine)
	}
	engineType, err := container.ParseEngineType(preferred)
	if err != nil {
		return nil, &ExitError{Code: ExitConfigError, Err: err}
	}

	engine, err := a.NewEngine(engineType)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("using container engine", "engine", engine.Name())
	return engine, nil
}

func (a *App) store(s *session, engine container.Engine) *cachestore.EngineStore {
	return cachestore.NewEngineStore(engine, cachestore.Options{
		Namespace:    s.cfg.ImageNamespace,
		VolumePrefix: s.cfg.VolumePrefix,
		ArtifactDir:  s.cfg.ArtifactDir,
		BuildRetries: s.cfg.BuildRetries,
		Stdout:       a.stderr,
		Stderr:       a.stderr,
		Logger:       s.logger,
	})
}

func (a *App) manager(s *session, store cachestore.Store) *provision.Manager {
	return provision.NewManager(store, provision.Config{
		Namespace:      s.cfg.ImageNamespace,
		DefinitionFile: s.cfg.DefinitionFile,
	}, s.logger)
}

func (a *App) orchestrator(s *session, engine container.Engine, store cachestore.Store) (*execute.Orchestrator, error) {
	interactive, tty := execute.DetectTerminal(a.stdin, a.stdout)
	orch, err := execute.NewOrchestrator(engine, store, execute.Options{
		TestCommand: s.cfg.TestCommand,
		CargoHome:   s.cfg.CargoHome,
		Stdin:       a.stdin,
		Stdout:      a.stdout,
		Stderr:      a.stderr,
		Interactive: interactive,
		TTY:         tty,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitConfigError, Err: err}
	}
	return orch, nil
}
