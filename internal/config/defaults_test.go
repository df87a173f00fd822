// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProjectFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func envMap(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoadDefaults_VersionPrecedence(t *testing.T) {
	t.Parallel()

	const (
		projectEnv = "TESTBOX_RUST_VERSION=1.76\n"
		toolchain  = "[toolchain]\nchannel = \"1.77\"\ncomponents = [\"clippy\"]\n"
	)

	tests := []struct {
		name        string
		env         map[string]string
		files       map[string]string
		configured  string
		wantVersion string
		wantSource  VersionSource
	}{
		{
			name:        "environment beats everything",
			env:         map[string]string{VersionEnvVar: "1.75"},
			files:       map[string]string{ProjectEnvFile: projectEnv, ToolchainFile: toolchain},
			configured:  "1.79",
			wantVersion: "1.75",
			wantSource:  VersionFromEnvironment,
		},
		{
			name:        "project env file beats toolchain",
			files:       map[string]string{ProjectEnvFile: projectEnv, ToolchainFile: toolchain},
			configured:  "1.79",
			wantVersion: "1.76",
			wantSource:  VersionFromProjectEnv,
		},
		{
			name:        "toolchain beats user config",
			files:       map[string]string{ProjectEnvFile: "OTHER=1\n", ToolchainFile: toolchain},
			configured:  "1.79",
			wantVersion: "1.77",
			wantSource:  VersionFromToolchain,
		},
		{
			name:        "legacy plain toolchain file",
			files:       map[string]string{legacyToolchainFile: "\nnightly-2024-05-01\n"},
			wantVersion: "nightly-2024-05-01",
			wantSource:  VersionFromToolchain,
		},
		{
			name:        "legacy toml toolchain file",
			files:       map[string]string{legacyToolchainFile: toolchain},
			wantVersion: "1.77",
			wantSource:  VersionFromToolchain,
		},
		{
			name:        "toolchain without channel falls through",
			files:       map[string]string{ToolchainFile: "[toolchain]\nprofile = \"minimal\"\n"},
			configured:  "1.79",
			wantVersion: "1.79",
			wantSource:  VersionFromConfig,
		},
		{
			name:        "builtin default",
			wantVersion: DefaultRustVersion,
			wantSource:  VersionFromBuiltin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for name, content := range tt.files {
				writeProjectFile(t, dir, name, content)
			}
			cfg := DefaultConfig()
			cfg.RustVersion = tt.configured

			d, err := LoadDefaults(cfg, dir, envMap(tt.env))
			if err != nil {
				t.Fatalf("LoadDefaults() unexpected error: %v", err)
			}
			if d.Version != tt.wantVersion || d.VersionSource != tt.wantSource {
				t.Errorf("LoadDefaults() version = (%q, %q), want (%q, %q)",
					d.Version, d.VersionSource, tt.wantVersion, tt.wantSource)
			}
		})
	}
}

func TestLoadDefaults_ProjectRoot(t *testing.T) {
	t.Parallel()

	cwd := t.TempDir()
	other := t.TempDir()
	cfg := DefaultConfig()
	cfg.WorkDir = "/src"

	d, err := LoadDefaults(cfg, cwd, envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if d.ProjectRoot != cwd || d.WorkDir != "/src" {
		t.Errorf("defaults = %+v, want root %q and workdir /src", d, cwd)
	}

	d, err = LoadDefaults(cfg, cwd, envMap(map[string]string{ProjectRootEnvVar: other}))
	if err != nil {
		t.Fatal(err)
	}
	if d.ProjectRoot != other {
		t.Errorf("ProjectRoot = %q, want %q from %s", d.ProjectRoot, other, ProjectRootEnvVar)
	}
}

func TestLoadDefaults_MalformedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProjectFile(t, dir, ToolchainFile, "[toolchain\nchannel = ")

	if _, err := LoadDefaults(DefaultConfig(), dir, envMap(nil)); err == nil {
		t.Fatal("expected error for malformed rust-toolchain.toml")
	}
}
