// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// ContainerEngineAuto selects the first available engine.
	ContainerEngineAuto ContainerEngine = ""
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"

	// DefaultRustVersion is used when no version is configured anywhere.
	DefaultRustVersion = "stable"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidConfigError collects every invalid setting of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the user settings.
	Config struct {
		// ContainerEngine selects docker or podman; empty auto-detects.
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// RustVersion is the lowest-precedence default version parameter.
		RustVersion string `json:"rust_version" mapstructure:"rust_version"`
		// ImageNamespace is the repository part of environment image tags.
		ImageNamespace string `json:"image_namespace" mapstructure:"image_namespace"`
		// VolumePrefix names the per-version cache volume "<prefix>-<version>".
		VolumePrefix string `json:"volume_prefix" mapstructure:"volume_prefix"`
		// DefinitionFile is the environment definition, relative to the project root.
		DefinitionFile string `json:"definition_file" mapstructure:"definition_file"`
		// ArtifactDir is the host build-output directory, relative to the project root.
		ArtifactDir string `json:"artifact_dir" mapstructure:"artifact_dir"`
		// WorkDir is the project mount point inside the container.
		WorkDir string `json:"workdir" mapstructure:"workdir"`
		// CargoHome is CARGO_HOME inside the image.
		CargoHome string `json:"cargo_home" mapstructure:"cargo_home"`
		// TestCommand is the command run in the container before passthrough args.
		TestCommand string `json:"test_command" mapstructure:"test_command"`
		// BuildRetries is the number of extra attempts after a transient build failure.
		BuildRetries int `json:"build_retries" mapstructure:"build_retries"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (expected docker or podman)", e.Value)
}

func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns an error if the engine is not one of the known values.
func (c ContainerEngine) Validate() error {
	switch c {
	case ContainerEngineAuto, ContainerEngineDocker, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: c}
	}
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineAuto,
		RustVersion:     "",
		ImageNamespace:  "testbox-env",
		VolumePrefix:    "testbox-cargo",
		DefinitionFile:  "Dockerfile.test",
		ArtifactDir:     "target-testbox",
		WorkDir:         "/workspace",
		CargoHome:       "/usr/local/cargo",
		TestCommand:     "cargo test",
		BuildRetries:    2,
		UI: UIConfig{
			Verbose: false,
		},
	}
}

// Validate re-checks settings after environment overrides, which bypass the
// CUE schema.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RustVersion != "" {
		if err := ValidateVersion(c.RustVersion); err != nil {
			errs = append(errs, fmt.Errorf("rust_version: %w", err))
		}
	}
	if strings.TrimSpace(c.ImageNamespace) == "" {
		errs = append(errs, errors.New("image_namespace must not be empty"))
	}
	if strings.TrimSpace(c.VolumePrefix) == "" {
		errs = append(errs, errors.New("volume_prefix must not be empty"))
	}
	if strings.TrimSpace(c.DefinitionFile) == "" {
		errs = append(errs, errors.New("definition_file must not be empty"))
	}
	if strings.TrimSpace(c.ArtifactDir) == "" {
		errs = append(errs, errors.New("artifact_dir must not be empty"))
	}
	if !path.IsAbs(c.WorkDir) {
		errs = append(errs, fmt.Errorf("workdir %q must be an absolute container path", c.WorkDir))
	}
	if !path.IsAbs(c.CargoHome) {
		errs = append(errs, fmt.Errorf("cargo_home %q must be an absolute container path", c.CargoHome))
	}
	if strings.TrimSpace(c.TestCommand) == "" {
		errs = append(errs, errors.New("test_command must not be empty"))
	}
	if c.BuildRetries < 0 {
		errs = append(errs, fmt.Errorf("build_retries %d must not be negative", c.BuildRetries))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
