// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func testDefaults() Defaults {
	return Defaults{
		Version:     "1.78",
		ProjectRoot: "/home/dev/project",
		WorkDir:     "/workspace",
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		args            []string
		wantVersion     string
		wantClean       bool
		wantPassthrough []string
	}{
		{
			name:        "no arguments keeps defaults",
			args:        nil,
			wantVersion: "1.78",
		},
		{
			name:        "equals form",
			args:        []string{"--rust-version=1.80"},
			wantVersion: "1.80",
		},
		{
			name:        "separate value form",
			args:        []string{"--rust-version", "nightly-2024-05-01"},
			wantVersion: "nightly-2024-05-01",
		},
		{
			name:        "last occurrence wins across forms",
			args:        []string{"--rust-version=1.80", "--rust-version", "1.81"},
			wantVersion: "1.81",
		},
		{
			name:        "last occurrence wins equals after separate",
			args:        []string{"--rust-version", "1.81", "--rust-version=1.80"},
			wantVersion: "1.80",
		},
		{
			name:        "clean flag",
			args:        []string{"--clean"},
			wantVersion: "1.78",
			wantClean:   true,
		},
		{
			name:        "clean explicit false",
			args:        []string{"--clean", "--clean=false"},
			wantVersion: "1.78",
		},
		{
			name:            "unknown flags pass through in order",
			args:            []string{"--release", "--clean", "-p", "core", "--rust-version=1.80", "parse_"},
			wantVersion:     "1.80",
			wantClean:       true,
			wantPassthrough: []string{"--release", "-p", "core", "parse_"},
		},
		{
			name:            "everything after separator is verbatim",
			args:            []string{"--release", "--", "--clean", "--rust-version=9", "--", "--nocapture"},
			wantVersion:     "1.78",
			wantPassthrough: []string{"--release", "--clean", "--rust-version=9", "--", "--nocapture"},
		},
		{
			name:            "separator first",
			args:            []string{"--", "--rust-version", "x"},
			wantVersion:     "1.78",
			wantPassthrough: []string{"--rust-version", "x"},
		},
		{
			name:        "trailing separator",
			args:        []string{"--clean", "--"},
			wantVersion: "1.78",
			wantClean:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Resolve(tt.args, testDefaults())
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.args, err)
			}
			if got := cfg.VersionParameter(); got != tt.wantVersion {
				t.Errorf("VersionParameter() = %q, want %q", got, tt.wantVersion)
			}
			if got := cfg.CleanRequested(); got != tt.wantClean {
				t.Errorf("CleanRequested() = %v, want %v", got, tt.wantClean)
			}
			if got := cfg.PassthroughArgs(); !slices.Equal(got, tt.wantPassthrough) {
				t.Errorf("PassthroughArgs() = %q, want %q", got, tt.wantPassthrough)
			}
			if cfg.ProjectRoot() != "/home/dev/project" || cfg.WorkDir() != "/workspace" {
				t.Errorf("paths = (%q, %q), want defaults", cfg.ProjectRoot(), cfg.WorkDir())
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"missing value at end", []string{"--rust-version"}, "missing value"},
		{"missing value before separator", []string{"--rust-version", "--", "x"}, "missing value"},
		{"empty equals value", []string{"--rust-version="}, "must not be empty"},
		{"empty separate value", []string{"--rust-version", ""}, "must not be empty"},
		{"flag as value", []string{"--rust-version", "--clean"}, "may only contain"},
		{"tag-unsafe characters", []string{"--rust-version=1.78:latest"}, "may only contain"},
		{"path traversal", []string{"--rust-version=../x"}, "may only contain"},
		{"too long", []string{"--rust-version=" + strings.Repeat("1", maxVersionLength+1)}, "longer than"},
		{"bad clean value", []string{"--clean=yes"}, "expected true or false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Resolve(tt.args, testDefaults())
			if err == nil {
				t.Fatalf("Resolve(%q) expected error", tt.args)
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error should be *ConfigError, got %T", err)
			}
			if !errors.Is(err, ErrInvalidArguments) {
				t.Error("error should wrap ErrInvalidArguments")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestResolve_InvalidDefaultVersion(t *testing.T) {
	t.Parallel()

	d := testDefaults()
	d.Version = "bad version"
	if _, err := Resolve(nil, d); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ConfigError for invalid default, got %v", err)
	}

	// A valid flag replaces the invalid default before validation.
	cfg, err := Resolve([]string{"--rust-version=1.80"}, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VersionParameter() != "1.80" {
		t.Errorf("VersionParameter() = %q, want 1.80", cfg.VersionParameter())
	}
}

func TestRunConfig_PassthroughArgsIsCopy(t *testing.T) {
	t.Parallel()

	cfg, err := Resolve([]string{"--", "a", "b"}, testDefaults())
	if err != nil {
		t.Fatal(err)
	}

	args := cfg.PassthroughArgs()
	args[0] = "mutated"
	if got := cfg.PassthroughArgs(); got[0] != "a" {
		t.Errorf("RunConfig was mutated through PassthroughArgs(): %q", got)
	}
}

func TestResolve_DoesNotRetainInput(t *testing.T) {
	t.Parallel()

	args := []string{"--", "a", "b"}
	cfg, err := Resolve(args, testDefaults())
	if err != nil {
		t.Fatal(err)
	}

	args[1] = "mutated"
	if got := cfg.PassthroughArgs(); got[0] != "a" {
		t.Errorf("RunConfig shares memory with the input slice: %q", got)
	}
}

func TestValidateVersion(t *testing.T) {
	t.Parallel()

	valid := []string{"stable", "1.78", "1.78.0", "nightly-2024-05-01", "beta", "1_78"}
	for _, v := range valid {
		if err := ValidateVersion(v); err != nil {
			t.Errorf("ValidateVersion(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "-1", ".hidden", "1.78 ", "a/b", "UPPER:case"}
	for _, v := range invalid {
		if err := ValidateVersion(v); err == nil {
			t.Errorf("ValidateVersion(%q) expected error", v)
		}
	}
}
