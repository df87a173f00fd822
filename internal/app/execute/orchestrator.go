// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kballard/go-shellquote"
	"golang.org/x/term"
	"mvdan.cc/sh/v3/syntax"

	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/container"
	"testbox-cli/internal/identity"
)

const (
	// DefaultTestCommand runs when no test command is configured.
	DefaultTestCommand = "cargo test"
	// DefaultCargoHome is CARGO_HOME inside the environment image.
	DefaultCargoHome = "/usr/local/cargo"

	// targetSubdir is where the artifact directory is mounted under the workdir.
	targetSubdir = "target"
	// registrySubdir is where the cache volume is mounted under CARGO_HOME.
	registrySubdir = "registry"

	artifactDirPerm = 0o755
)

var (
	// ErrExecutionFailed is the sentinel error wrapped by ExecutionError.
	ErrExecutionFailed = errors.New("test container could not be launched")

	// ErrEmptyTestCommand is returned when the test command has no words.
	ErrEmptyTestCommand = errors.New("test command is empty")
)

type (
	// ExitCode is the exit status of the containerized test command.
	ExitCode int

	// ExecutionError is returned when the container could not be launched.
	// A test command that runs and fails is not an ExecutionError; its exit
	// code is returned instead.
	ExecutionError struct {
		Engine string
		Image  string
		Cause  error
	}

	// Options configures an Orchestrator.
	Options struct {
		// TestCommand is split with shell word rules. Empty means DefaultTestCommand.
		TestCommand string
		// CargoHome is CARGO_HOME in the image. Empty means DefaultCargoHome.
		CargoHome string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		// Interactive and TTY add -i and -t. NewOrchestrator leaves them as
		// given; use DetectTerminal to derive them from the streams.
		Interactive bool
		TTY         bool

		Logger *log.Logger
	}

	// Orchestrator launches test runs through a container engine.
	Orchestrator struct {
		engine  container.Engine
		store   cachestore.Store
		command []string
		opts    Options
		logger  *log.Logger
	}
)

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to run %s in %s: %v", e.Image, e.Engine, e.Cause)
}

// Unwrap returns ErrExecutionFailed and the underlying cause.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Cause}
}

// NewOrchestrator creates an Orchestrator. The store supplies the cache
// volume name and the artifact directory location.
func NewOrchestrator(engine container.Engine, store cachestore.Store, opts Options) (*Orchestrator, error) {
	if opts.TestCommand == "" {
		opts.TestCommand = DefaultTestCommand
	}
	if opts.CargoHome == "" {
		opts.CargoHome = DefaultCargoHome
	}

	words, err := shellquote.Split(opts.TestCommand)
	if err != nil {
		return nil, fmt.Errorf("parse test command %q: %w", opts.TestCommand, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyTestCommand
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Orchestrator{
		engine:  engine,
		store:   store,
		command: words,
		opts:    opts,
		logger:  logger,
	}, nil
}

// DetectTerminal reports whether stdin and stdout are terminals. Only
// *os.File streams can be terminals.
func DetectTerminal(stdin io.Reader, stdout io.Writer) (interactive, tty bool) {
	in, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return false, false
	}
	out, ok := stdout.(*os.File)
	return true, ok && term.IsTerminal(int(out.Fd()))
}

// Run launches the test command in the environment identified by id and
// returns the container's exit code. The artifact directory is created on
// the host first so the engine does not create it owned by root.
func (o *Orchestrator) Run(ctx context.Context, rc config.RunConfig, id identity.Identity) (ExitCode, error) {
	runOpts, artifactDir, err := o.runOptions(rc, id)
	if err != nil {
		return 1, o.executionError(id, err)
	}

	if err := os.MkdirAll(artifactDir, artifactDirPerm); err != nil {
		return 1, o.executionError(id, fmt.Errorf("create artifact directory: %w", err))
	}

	o.logger.Debug("running tests", "command", FormatCommand(o.argv(runOpts)))

	result, err := o.engine.Run(ctx, runOpts)
	if err != nil {
		return 1, o.executionError(id, err)
	}
	if result.Error != nil {
		return ExitCode(result.ExitCode), o.executionError(id, result.Error)
	}

	o.logger.Debug("test container exited", "code", result.ExitCode)
	return ExitCode(result.ExitCode), nil
}

// Command returns the full engine argv Run would execute, binary name first.
func (o *Orchestrator) Command(rc config.RunConfig, id identity.Identity) ([]string, error) {
	runOpts, _, err := o.runOptions(rc, id)
	if err != nil {
		return nil, err
	}
	return o.argv(runOpts), nil
}

func (o *Orchestrator) argv(runOpts container.RunOptions) []string {
	return append([]string{o.engine.Name()}, o.engine.RunArgs(runOpts)...)
}

// runOptions also returns the host artifact directory it mounts.
func (o *Orchestrator) runOptions(rc config.RunConfig, id identity.Identity) (container.RunOptions, string, error) {
	artifactDir, err := o.store.ArtifactDirectory(rc.ProjectRoot())
	if err != nil {
		return container.RunOptions{}, "", err
	}

	workDir := rc.WorkDir()
	command := make([]string, 0, len(o.command)+len(rc.PassthroughArgs()))
	command = append(command, o.command...)
	command = append(command, rc.PassthroughArgs()...)

	return container.RunOptions{
		Image:   id.Tag(),
		Command: command,
		WorkDir: workDir,
		Volumes: []string{
			rc.ProjectRoot() + ":" + workDir,
			artifactDir + ":" + path.Join(workDir, targetSubdir),
			o.store.VolumeName(id.VersionParameter) + ":" + path.Join(o.opts.CargoHome, registrySubdir),
		},
		Remove:      true,
		Stdin:       o.opts.Stdin,
		Stdout:      o.opts.Stdout,
		Stderr:      o.opts.Stderr,
		Interactive: o.opts.Interactive,
		TTY:         o.opts.TTY,
	}, artifactDir, nil
}

func (o *Orchestrator) executionError(id identity.Identity, err error) error {
	return &ExecutionError{Engine: o.engine.Name(), Image: id.Tag(), Cause: err}
}

// FormatCommand renders argv as a single line a bash user can paste.
func FormatCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
