// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"testbox-cli/internal/issue"
	"testbox-cli/pkg/platform"
)

// exitCodeInterrupted is reported when the engine client was killed by a
// signal (usually the user's Ctrl-C propagated through the context).
const exitCodeInterrupted = 130

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount spec before it is passed to -v.
	// Podman uses this to add SELinux labels.
	VolumeFormatFunc func(volume string) string

	// RunArgsTransformer modifies run arguments after they're built.
	// Used by Podman to inject --userns=keep-id for rootless compatibility.
	RunArgsTransformer func(args []string) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based engines.
	// Docker and Podman embed it; engine-specific methods (Name, Available,
	// Version, ImageExists) stay on the concrete types.
	BaseCLIEngine struct {
		name               string // Engine name for error messages (e.g., "docker", "podman")
		binaryPath         string
		execCommand        ExecCommandFunc
		volumeFormatter    VolumeFormatFunc
		runArgsTransformer RunArgsTransformer
		sandbox            platform.SandboxType
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function (for testing).
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithRunArgsTransformer sets a transformer applied to run arguments.
func WithRunArgsTransformer(fn RunArgsTransformer) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runArgsTransformer = fn
	}
}

// WithSandbox routes every engine command through the host spawn mechanism
// of the given sandbox (e.g. flatpak-spawn --host). Paths inside a sandbox do
// not match the host, so the engine binary has to run on the host itself.
func WithSandbox(st platform.SandboxType) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.sandbox = st
	}
}

// NewBaseCLIEngine creates a BaseCLIEngine for the binary at binaryPath.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
		// Identity functions by default
		volumeFormatter:    func(v string) string { return v },
		runArgsTransformer: func(args []string) []string { return args },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BinaryPath returns the path to the engine binary ("" if not found).
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a build command. Build args are emitted
// in key order so the argv is stable.
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		// An empty ContextDir leaves the path for the engine to resolve from CWD.
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	keys := make([]string, 0, len(opts.BuildArgs))
	for k := range opts.BuildArgs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, opts.BuildArgs[k]))
	}

	args = append(args, opts.ContextDir)

	return args
}

// RunArgs constructs arguments for a run command. Volumes keep their order
// and the command follows the image verbatim.
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	envKeys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		envKeys = append(envKeys, k)
	}
	slices.Sort(envKeys)
	for _, k := range envKeys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return e.runArgsTransformer(args)
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image string, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, image)
	return args
}

// ListImagesArgs constructs arguments for listing the images of a repository
// as one "repository:tag" reference per line.
func (e *BaseCLIEngine) ListImagesArgs(repository string) []string {
	return []string{"images", "--format", "{{.Repository}}:{{.Tag}}", repository}
}

// --- Command Execution ---

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
// Stderr is captured too and attached to the error on failure.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(errOut.String()); msg != "" {
			return "", fmt.Errorf("command %s %v failed: %w: %s", e.binaryPath, args, err, msg)
		}
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	spawn := platform.SpawnCommandFor(e.sandbox)
	if spawn == "" {
		return e.execCommand(ctx, e.binaryPath, args...)
	}

	// [spawn, spawn-args..., binary, args...]
	spawnArgs := platform.SpawnArgsFor(e.sandbox)
	full := make([]string, 0, len(spawnArgs)+1+len(args))
	full = append(full, spawnArgs...)
	full = append(full, e.binaryPath)
	full = append(full, args...)
	return e.execCommand(ctx, spawn, full...)
}

// --- Engine Methods shared by Docker and Podman ---

// Build builds an image from a Dockerfile, streaming engine output to
// opts.Stdout and opts.Stderr.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if opts.Tag == "" {
		return fmt.Errorf("build options: tag must not be empty")
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}

	return nil
}

// Run runs a command in a container. A non-zero exit status is reported in
// RunResult.ExitCode, not as an error; RunResult.Error is set only when the
// engine binary could not be started.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode < 0 {
				result.ExitCode = exitCodeInterrupted
			}
		} else {
			result.ExitCode = 1
			result.Error = runContainerError(e.name, opts, err)
		}
	}

	return result, nil
}

// ListImages returns the local images of repository as "repository:tag".
// Dangling entries ("<none>") are skipped.
func (e *BaseCLIEngine) ListImages(ctx context.Context, repository string) ([]string, error) {
	out, err := e.RunCommandWithOutput(ctx, e.ListImagesArgs(repository)...)
	if err != nil {
		return nil, err
	}
	return parseImageList(out), nil
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	_, err := e.RunCommandWithOutput(ctx, e.RemoveImageArgs(image, force)...)
	return err
}

// VolumeExists checks if a named volume exists.
func (e *BaseCLIEngine) VolumeExists(ctx context.Context, name string) (bool, error) {
	return existsFromStatus(e.RunCommandStatus(ctx, "volume", "inspect", name))
}

// existsFromStatus interprets the result of an inspect-style command: a
// non-zero exit means the object is absent, while a command that could not
// run at all is an error.
func existsFromStatus(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// RemoveVolume removes a named volume.
func (e *BaseCLIEngine) RemoveVolume(ctx context.Context, name string) error {
	_, err := e.RunCommandWithOutput(ctx, "volume", "rm", name)
	return err
}

// parseImageList splits "repository:tag" lines and drops dangling images.
func parseImageList(out string) []string {
	var refs []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, "<none>") {
			continue
		}
		refs = append(refs, line)
	}
	return refs
}

// buildContainerError creates an actionable error for image build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image")

	switch {
	case opts.Tag != "":
		ctx.WithResource(opts.Tag)
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	}

	ctx.WithSuggestion("Check the environment definition for syntax errors")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to see the engine command")

	return ctx.Wrap(cause).BuildError()
}

// runContainerError creates an actionable error when a container cannot be launched.
func runContainerError(engine string, opts RunOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(opts.Image).
		WithSuggestion("Verify the image exists (try: " + engine + " images)").
		WithSuggestion("Check that volume mount paths exist on the host").
		Wrap(cause).
		BuildError()
}
