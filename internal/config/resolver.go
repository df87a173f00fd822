// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	// RustVersionFlag selects the version parameter.
	RustVersionFlag = "--rust-version"
	// CleanFlag requests a purge of cached state before the run.
	CleanFlag = "--clean"
	// Separator ends option parsing; everything after it is passthrough.
	Separator = "--"

	// maxVersionLength keeps "<namespace>:<version>-<digest>" within the
	// 128-character tag limit of image references.
	maxVersionLength = 115
)

var (
	// ErrInvalidArguments is the sentinel wrapped by ConfigError.
	ErrInvalidArguments = errors.New("invalid arguments")

	versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

type (
	// ConfigError reports malformed invocation arguments.
	ConfigError struct {
		// Flag is the offending option, empty for value-level problems.
		Flag string
		// Value is the offending value, if any.
		Value string
		// Reason describes the problem.
		Reason string
	}

	// RunConfig is the resolved, immutable configuration of one invocation.
	RunConfig struct {
		versionParameter string
		cleanRequested   bool
		passthroughArgs  []string
		projectRoot      string
		workDir          string
	}
)

func (e *ConfigError) Error() string {
	switch {
	case e.Flag != "" && e.Value != "":
		return fmt.Sprintf("%s %q: %s", e.Flag, e.Value, e.Reason)
	case e.Flag != "":
		return fmt.Sprintf("%s: %s", e.Flag, e.Reason)
	case e.Value != "":
		return fmt.Sprintf("%q: %s", e.Value, e.Reason)
	default:
		return e.Reason
	}
}

func (e *ConfigError) Unwrap() error { return ErrInvalidArguments }

// VersionParameter is the toolchain version line.
func (c RunConfig) VersionParameter() string { return c.versionParameter }

// CleanRequested reports whether cached state should be purged first.
func (c RunConfig) CleanRequested() bool { return c.cleanRequested }

// PassthroughArgs returns a copy of the arguments forwarded to the test command.
func (c RunConfig) PassthroughArgs() []string { return slices.Clone(c.passthroughArgs) }

// ProjectRoot is the absolute host path of the project.
func (c RunConfig) ProjectRoot() string { return c.projectRoot }

// WorkDir is the in-container mount point of the project root.
func (c RunConfig) WorkDir() string { return c.workDir }

// ValidateVersion checks that v can be embedded in an image tag and a volume name.
func ValidateVersion(v string) error {
	if v == "" {
		return &ConfigError{Flag: RustVersionFlag, Reason: "version must not be empty"}
	}
	if len(v) > maxVersionLength {
		return &ConfigError{Value: v, Reason: fmt.Sprintf("version is longer than %d characters", maxVersionLength)}
	}
	if !versionPattern.MatchString(v) {
		return &ConfigError{
			Value:  v,
			Reason: "version may only contain letters, digits, '.', '_' and '-' and must start with a letter or digit",
		}
	}
	return nil
}

// Resolve parses invocation arguments against defaults. It performs no I/O.
//
// Before the separator, --rust-version=<v>, --rust-version <v>, --clean and
// --clean=true|false are consumed; the last --rust-version wins. Every other
// token, and everything after the separator, is passthrough in the original
// order. The separator itself is not forwarded.
func Resolve(args []string, defaults Defaults) (RunConfig, error) {
	cfg := RunConfig{
		versionParameter: defaults.Version,
		projectRoot:      defaults.ProjectRoot,
		workDir:          defaults.WorkDir,
	}

	var passthrough []string

scan:
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == Separator:
			passthrough = append(passthrough, args[i+1:]...)
			break scan

		case arg == RustVersionFlag:
			if i+1 >= len(args) || args[i+1] == Separator {
				return RunConfig{}, &ConfigError{Flag: RustVersionFlag, Reason: "missing value"}
			}
			i++
			if args[i] == "" {
				return RunConfig{}, &ConfigError{Flag: RustVersionFlag, Reason: "version must not be empty"}
			}
			cfg.versionParameter = args[i]

		case strings.HasPrefix(arg, RustVersionFlag+"="):
			v := strings.TrimPrefix(arg, RustVersionFlag+"=")
			if v == "" {
				return RunConfig{}, &ConfigError{Flag: RustVersionFlag, Reason: "version must not be empty"}
			}
			cfg.versionParameter = v

		case arg == CleanFlag:
			cfg.cleanRequested = true

		case strings.HasPrefix(arg, CleanFlag+"="):
			switch v := strings.TrimPrefix(arg, CleanFlag+"="); v {
			case "true":
				cfg.cleanRequested = true
			case "false":
				cfg.cleanRequested = false
			default:
				return RunConfig{}, &ConfigError{Flag: CleanFlag, Value: v, Reason: "expected true or false"}
			}

		default:
			passthrough = append(passthrough, arg)
		}
	}

	if err := ValidateVersion(cfg.versionParameter); err != nil {
		return RunConfig{}, err
	}

	cfg.passthroughArgs = passthrough
	return cfg, nil
}
