// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// VersionEnvVar overrides the default version parameter.
	VersionEnvVar = "TESTBOX_RUST_VERSION"
	// ProjectRootEnvVar overrides the project root (the working directory otherwise).
	ProjectRootEnvVar = "TESTBOX_PROJECT_ROOT"
	// ProjectEnvFile holds per-project defaults in dotenv format.
	ProjectEnvFile = ".testbox.env"
	// ToolchainFile is rustup's toolchain pin.
	ToolchainFile = "rust-toolchain.toml"
	// legacyToolchainFile is the extensionless form rustup also reads.
	legacyToolchainFile = "rust-toolchain"
)

// Sources a default version can come from, in precedence order.
const (
	VersionFromEnvironment VersionSource = "environment"
	VersionFromProjectEnv  VersionSource = ProjectEnvFile
	VersionFromToolchain   VersionSource = ToolchainFile
	VersionFromConfig      VersionSource = "config"
	VersionFromBuiltin     VersionSource = "default"
)

type (
	// VersionSource names where the default version parameter came from.
	VersionSource string

	// Defaults are the environment-derived inputs to Resolve.
	Defaults struct {
		// Version is the version parameter used when no flag sets one.
		Version string
		// VersionSource records which source supplied Version.
		VersionSource VersionSource
		// ProjectRoot is the absolute host path of the project.
		ProjectRoot string
		// WorkDir is the in-container mount point of ProjectRoot.
		WorkDir string
	}

	toolchainDocument struct {
		Toolchain struct {
			Channel string `toml:"channel"`
		} `toml:"toolchain"`
	}
)

// LoadDefaults gathers the defaults for Resolve. The version parameter is
// the first non-empty of: TESTBOX_RUST_VERSION in the process environment,
// the same key in <project>/.testbox.env, toolchain.channel in
// <project>/rust-toolchain.toml, rust_version in the user settings, and
// finally "stable".
//
// getenv is normally os.Getenv; cwd is used as project root unless
// TESTBOX_PROJECT_ROOT is set.
func LoadDefaults(cfg *Config, cwd string, getenv func(string) string) (Defaults, error) {
	root := getenv(ProjectRootEnvVar)
	if root == "" {
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Defaults{}, fmt.Errorf("resolve project root: %w", err)
	}

	d := Defaults{ProjectRoot: root, WorkDir: cfg.WorkDir}

	if v := getenv(VersionEnvVar); v != "" {
		d.Version, d.VersionSource = v, VersionFromEnvironment
		return d, nil
	}

	projectEnv, err := readProjectEnv(filepath.Join(root, ProjectEnvFile))
	if err != nil {
		return Defaults{}, err
	}
	if v := projectEnv[VersionEnvVar]; v != "" {
		d.Version, d.VersionSource = v, VersionFromProjectEnv
		return d, nil
	}

	channel, err := readToolchainChannel(root)
	if err != nil {
		return Defaults{}, err
	}
	if channel != "" {
		d.Version, d.VersionSource = channel, VersionFromToolchain
		return d, nil
	}

	if cfg.RustVersion != "" {
		d.Version, d.VersionSource = cfg.RustVersion, VersionFromConfig
		return d, nil
	}

	d.Version, d.VersionSource = DefaultRustVersion, VersionFromBuiltin
	return d, nil
}

// readProjectEnv parses a dotenv file; a missing file yields no values.
func readProjectEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

// readToolchainChannel returns the pinned channel from rust-toolchain.toml,
// or from the legacy rust-toolchain file, which is either TOML or a bare
// channel name.
func readToolchainChannel(root string) (string, error) {
	path := filepath.Join(root, ToolchainFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var doc toolchainDocument
		if err := toml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		return strings.TrimSpace(doc.Toolchain.Channel), nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	path = filepath.Join(root, legacyToolchainFile)
	data, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var doc toolchainDocument
	if toml.Unmarshal(data, &doc) == nil && doc.Toolchain.Channel != "" {
		return strings.TrimSpace(doc.Toolchain.Channel), nil
	}
	for line := range strings.Lines(string(data)) {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}
