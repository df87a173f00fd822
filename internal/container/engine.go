// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
var ErrNoEngineAvailable = errors.New("no container engine available")

type (
	// Engine defines the interface for container operations
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Available checks if the engine is available on the system
		Available() bool
		// Version returns the engine server version
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs a command in a container
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// RunArgs returns the argv (without the binary) that Run would execute
		RunArgs(opts RunOptions) []string
		// ImageExists checks if an image exists locally
		ImageExists(ctx context.Context, image string) (bool, error)
		// ListImages returns "repository:tag" references of local images in repository
		ListImages(ctx context.Context, repository string) ([]string, error)
		// RemoveImage removes an image
		RemoveImage(ctx context.Context, image string, force bool) error
		// VolumeExists checks if a named volume exists
		VolumeExists(ctx context.Context, name string) (bool, error)
		// RemoveVolume removes a named volume
		RemoveVolume(ctx context.Context, name string) error
	}

	// EngineType identifies the container engine type
	EngineType string

	// BuildOptions contains options for building an image
	BuildOptions struct {
		// ContextDir is the build context directory
		ContextDir string
		// Dockerfile is the path to the Dockerfile (relative to ContextDir unless absolute)
		Dockerfile string
		// Tag is the image tag
		Tag string
		// BuildArgs are build-time variables
		BuildArgs map[string]string
		// NoCache disables the build cache
		NoCache bool
		// Stdout is where to write build output
		Stdout io.Writer
		// Stderr is where to write build errors
		Stderr io.Writer
	}

	// RunOptions contains options for running a container
	RunOptions struct {
		Image   string
		Command []string
		// WorkDir is the working directory inside the container
		WorkDir string
		Env     map[string]string
		// Volumes are mounts in "source:target[:options]" format; source is a
		// host path or a named volume
		Volumes []string
		// Remove automatically removes the container after exit
		Remove      bool
		Name        string
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
		Interactive bool
		TTY         bool
	}

	// RunResult contains the result of running a container
	RunResult struct {
		// ExitCode is the exit code of the engine client, which mirrors the
		// container's main process
		ExitCode int
		// Error is set when the engine binary could not be started at all
		Error error
	}

	// EngineNotAvailableError is returned when a container engine is not available
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// ParseEngineType converts a configuration value into an EngineType.
// The empty string selects auto-detection and is returned unchanged.
func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(s) {
	case "", EngineTypeDocker, EngineTypePodman:
		return EngineType(s), nil
	default:
		return "", fmt.Errorf("unknown container engine type: %q (expected docker or podman)", s)
	}
}

// NewEngine creates a new container engine based on preference, falling back
// to the other engine when the preferred one is unavailable. An empty
// preference auto-detects.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	switch preferredType {
	case "":
		return AutoDetectEngine(opts...)

	case EngineTypePodman:
		engine := NewPodmanEngine(opts...)
		if engine.Available() {
			return engine, nil
		}
		// Fall back to Docker
		dockerEngine := NewDockerEngine(opts...)
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeDocker:
		engine := NewDockerEngine(opts...)
		if engine.Available() {
			return engine, nil
		}
		// Fall back to Podman
		podmanEngine := NewPodmanEngine(opts...)
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	docker := NewDockerEngine(opts...)
	if docker.Available() {
		return docker, nil
	}

	podman := NewPodmanEngine(opts...)
	if podman.Available() {
		return podman, nil
	}

	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
