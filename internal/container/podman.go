// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"testbox-cli/pkg/platform"
)

// podmanLocalPrefix is the registry Podman assigns to locally built images.
const podmanLocalPrefix = "localhost/"

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// selinuxEnabled is swapped out in tests.
var selinuxEnabled = isSELinuxEnabled

// NewPodmanEngine creates a new Podman engine.
// On Linux with SELinux enabled, volume mounts are labeled with :z, and run
// commands keep the host user id so files in bind mounts stay user-owned.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	// Podman defaults go first so callers can override them
	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithSandbox(platform.DetectSandbox()),
		WithVolumeFormatter(addSELinuxLabel),
		WithRunArgsTransformer(injectKeepID),
	}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists. It fails only when the engine
// command cannot be run.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return existsFromStatus(e.RunCommandStatus(ctx, "image", "exists", image))
}

// ListImages lists the images of repository. Podman reports locally built
// images under "localhost/"; the prefix is stripped so references match the
// tags they were built with.
func (e *PodmanEngine) ListImages(ctx context.Context, repository string) ([]string, error) {
	refs, err := e.BaseCLIEngine.ListImages(ctx, repository)
	if err != nil {
		return nil, err
	}
	for i, ref := range refs {
		refs[i] = strings.TrimPrefix(ref, podmanLocalPrefix)
	}
	return refs, nil
}

// isSELinuxEnabled checks if SELinux is enforcing on the system
func isSELinuxEnabled() bool {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// addSELinuxLabel adds the :z label to a volume mount if SELinux is enabled
// and the volume doesn't already carry an SELinux label (:z or :Z)
func addSELinuxLabel(volume string) string {
	if !selinuxEnabled() {
		return volume
	}

	// Volume format: source:target[:options]
	parts := strings.Split(volume, ":")
	if len(parts) < 2 {
		return volume
	}

	if len(parts) >= 3 {
		options := parts[len(parts)-1]
		for opt := range strings.SplitSeq(options, ",") {
			if opt == "z" || opt == "Z" {
				return volume
			}
		}
		return volume + ",z"
	}

	return volume + ":z"
}

// injectKeepID adds --userns=keep-id right after "run" unless a userns
// option is already present.
func injectKeepID(args []string) []string {
	if len(args) == 0 || args[0] != "run" {
		return args
	}
	if slices.ContainsFunc(args, func(a string) bool { return strings.HasPrefix(a, "--userns") }) {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, "run", "--userns=keep-id")
	return append(out, args[1:]...)
}

var _ Engine = (*PodmanEngine)(nil)
