// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/container"
	"testbox-cli/internal/identity"
	"testbox-cli/internal/testutil"
)

func newStore(engine container.Engine) *cachestore.EngineStore {
	return cachestore.NewEngineStore(engine, cachestore.Options{
		Namespace:    "env",
		VolumePrefix: "cache",
		ArtifactDir:  "target-testbox",
	})
}

func resolve(t *testing.T, root string, args ...string) config.RunConfig {
	t.Helper()
	rc, err := config.Resolve(args, config.Defaults{Version: "1.78", ProjectRoot: root, WorkDir: "/workspace"})
	if err != nil {
		t.Fatalf("Resolve(%q): %v", args, err)
	}
	return rc
}

func testIdentity() identity.Identity {
	return identity.Derive("env", "1.78", []byte("FROM rust:1.78\n"))
}

func TestOrchestrator_RunOptions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	engine := testutil.NewFakeEngine()
	orch, err := NewOrchestrator(engine, newStore(engine), Options{})
	if err != nil {
		t.Fatalf("NewOrchestrator() error: %v", err)
	}
	id := testIdentity()

	code, err := orch.Run(context.Background(), resolve(t, root, "--", "--nocapture", "my_test"), id)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if code != 0 {
		t.Errorf("Run() exit code = %d, want 0", code)
	}
	if len(engine.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(engine.Runs))
	}

	got := engine.Runs[0]
	if got.Image != id.Tag() {
		t.Errorf("Image = %q, want %q", got.Image, id.Tag())
	}
	if !got.Remove {
		t.Error("container must be removed after exit")
	}
	if got.WorkDir != "/workspace" {
		t.Errorf("WorkDir = %q, want /workspace", got.WorkDir)
	}
	wantCmd := []string{"cargo", "test", "--nocapture", "my_test"}
	if !slices.Equal(got.Command, wantCmd) {
		t.Errorf("Command = %q, want %q", got.Command, wantCmd)
	}
	artifactDir := filepath.Join(root, "target-testbox")
	wantVolumes := []string{
		root + ":/workspace",
		artifactDir + ":/workspace/target",
		"cache-1.78:/usr/local/cargo/registry",
	}
	if !slices.Equal(got.Volumes, wantVolumes) {
		t.Errorf("Volumes = %q, want %q", got.Volumes, wantVolumes)
	}
	if !testutil.Exists(t, artifactDir) {
		t.Error("artifact directory must exist before the container starts")
	}
}

func TestOrchestrator_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	for _, want := range []int{1, 101, 130} {
		engine := testutil.NewFakeEngine()
		engine.RunResult = &container.RunResult{ExitCode: want}
		orch, err := NewOrchestrator(engine, newStore(engine), Options{})
		if err != nil {
			t.Fatal(err)
		}

		code, err := orch.Run(context.Background(), resolve(t, t.TempDir()), testIdentity())
		if err != nil {
			t.Errorf("exit code %d: a failing test is not an execution error: %v", want, err)
		}
		if int(code) != want {
			t.Errorf("exit code = %d, want %d", code, want)
		}
	}
}

func TestOrchestrator_LaunchFailure(t *testing.T) {
	t.Parallel()

	engine := testutil.NewFakeEngine()
	engine.RunResult = &container.RunResult{ExitCode: 1, Error: errors.New("exec: \"docker\": executable file not found")}
	orch, err := NewOrchestrator(engine, newStore(engine), Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = orch.Run(context.Background(), resolve(t, t.TempDir()), testIdentity())

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
	if !errors.Is(err, ErrExecutionFailed) {
		t.Error("ExecutionError should wrap ErrExecutionFailed")
	}
	if execErr.Image != testIdentity().Tag() || execErr.Engine != "fake" {
		t.Errorf("ExecutionError = %+v", execErr)
	}
}

func TestOrchestrator_ArtifactDirectoryBlocked(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// A regular file where the directory should go makes MkdirAll fail.
	testutil.MustWriteFile(t, filepath.Join(root, "target-testbox"), "not a directory")

	engine := testutil.NewFakeEngine()
	orch, err := NewOrchestrator(engine, newStore(engine), Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = orch.Run(context.Background(), resolve(t, root), testIdentity())
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected execution failure, got %v", err)
	}
	if len(engine.Runs) != 0 {
		t.Error("the container must not start without its artifact directory")
	}
}

func TestNewOrchestrator_TestCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		want    []string
		wantErr bool
	}{
		{name: "default", want: []string{"cargo", "test"}},
		{name: "nextest", command: "cargo nextest run", want: []string{"cargo", "nextest", "run"}},
		{name: "quoted features", command: `cargo test --features "a b"`, want: []string{"cargo", "test", "--features", "a b"}},
		{name: "unterminated quote", command: `cargo test "oops`, wantErr: true},
		{name: "only spaces", command: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := testutil.NewFakeEngine()
			orch, err := NewOrchestrator(engine, newStore(engine), Options{TestCommand: tt.command})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewOrchestrator(%q) expected error", tt.command)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOrchestrator(%q) unexpected error: %v", tt.command, err)
			}
			if !slices.Equal(orch.command, tt.want) {
				t.Errorf("command = %q, want %q", orch.command, tt.want)
			}
		})
	}
}

func TestOrchestrator_Command(t *testing.T) {
	t.Parallel()

	engine := testutil.NewFakeEngine()
	orch, err := NewOrchestrator(engine, newStore(engine), Options{
		CargoHome:   "/opt/cargo",
		Interactive: true,
		TTY:         true,
	})
	if err != nil {
		t.Fatal(err)
	}
	root := "/home/dev/project"

	argv, err := orch.Command(resolve(t, root, "--", "it's"), testIdentity())
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}

	want := []string{
		"fake", "run", "--rm", "-w", "/workspace", "-i", "-t",
		"-v", "/home/dev/project:/workspace",
		"-v", "/home/dev/project/target-testbox:/workspace/target",
		"-v", "cache-1.78:/opt/cargo/registry",
		testIdentity().Tag(), "cargo", "test", "it's",
	}
	if !slices.Equal(argv, want) {
		t.Errorf("Command() =\n%q\nwant\n%q", argv, want)
	}
	if len(engine.Runs) != 0 {
		t.Error("Command must not run anything")
	}
	if _, err := os.Stat(filepath.Join(root, "target-testbox")); err == nil {
		t.Error("Command must not create the artifact directory")
	}
}

func TestFormatCommand(t *testing.T) {
	t.Parallel()

	got := FormatCommand([]string{"docker", "run", "--features", "a b", "it's"})
	for _, part := range []string{"docker run --features", "'a b'"} {
		if !strings.Contains(got, part) {
			t.Errorf("FormatCommand() = %q, missing %q", got, part)
		}
	}
	if strings.Contains(got, " it's") {
		t.Errorf("FormatCommand() left a quote unescaped: %q", got)
	}
}

func TestDetectTerminal_NonFile(t *testing.T) {
	t.Parallel()

	interactive, tty := DetectTerminal(strings.NewReader(""), &bytes.Buffer{})
	if interactive || tty {
		t.Errorf("DetectTerminal() = %v, %v for in-memory streams", interactive, tty)
	}
}
