// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"
)

type (
	// MockCommandRecorder captures arguments passed to exec.Command for verification.
	// It uses the TestHelperProcess pattern to simulate command execution.
	MockCommandRecorder struct {
		// Invocations records each call to the mock exec.Command
		Invocations []MockInvocation
		// ExitCode is the exit code to return (0 = success)
		ExitCode int
		// Stdout is the output to write to stdout
		Stdout string
		// Stderr is the output to write to stderr
		Stderr string
		// FailOnCommand makes invocations whose first argument matches exit 1
		FailOnCommand string
	}

	// MockInvocation represents a single invocation of exec.Command.
	MockInvocation struct {
		Name string
		Args []string
	}
)

// NewMockCommandRecorder creates a new recorder with default settings (success, no output).
func NewMockCommandRecorder() *MockCommandRecorder {
	return &MockCommandRecorder{
		Invocations: make([]MockInvocation, 0),
	}
}

// ContextCommandFunc returns an ExecCommandFunc that records invocations and
// runs TestHelperProcess instead of the real binary.
func (m *MockCommandRecorder) ContextCommandFunc(t *testing.T) ExecCommandFunc {
	t.Helper()
	return func(_ context.Context, name string, args ...string) *exec.Cmd {
		m.Invocations = append(m.Invocations, MockInvocation{
			Name: name,
			Args: args,
		})

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.Command(os.Args[0], cs...) //nolint:noctx // exec.Command used intentionally for test helper
		exitCode := m.ExitCode
		if m.FailOnCommand != "" && len(args) > 0 && args[0] == m.FailOnCommand {
			exitCode = 1
		}
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			fmt.Sprintf("GO_HELPER_STDOUT=%s", m.Stdout),
			fmt.Sprintf("GO_HELPER_STDERR=%s", m.Stderr),
		}
		return cmd
	}
}

// LastInvocation returns the most recent invocation, or nil if none.
func (m *MockCommandRecorder) LastInvocation() *MockInvocation {
	if len(m.Invocations) == 0 {
		return nil
	}
	return &m.Invocations[len(m.Invocations)-1]
}

// LastArgs returns the arguments from the most recent invocation.
func (m *MockCommandRecorder) LastArgs() []string {
	if inv := m.LastInvocation(); inv != nil {
		return inv.Args
	}
	return nil
}

// AssertCommandName verifies the last command name matches.
func (m *MockCommandRecorder) AssertCommandName(t *testing.T, expected string) {
	t.Helper()
	if inv := m.LastInvocation(); inv == nil {
		t.Errorf("expected command %q but no commands were invoked", expected)
	} else if inv.Name != expected {
		t.Errorf("expected command %q, got %q", expected, inv.Name)
	}
}

// AssertArgs verifies the last invocation args exactly.
func (m *MockCommandRecorder) AssertArgs(t *testing.T, expected ...string) {
	t.Helper()
	if got := m.LastArgs(); !slices.Equal(got, expected) {
		t.Errorf("args = %q, want %q", got, expected)
	}
}

// AssertArgsContain verifies that the last invocation args contain the expected string.
func (m *MockCommandRecorder) AssertArgsContain(t *testing.T, expected string) {
	t.Helper()
	argsStr := strings.Join(m.LastArgs(), " ")
	if !strings.Contains(argsStr, expected) {
		t.Errorf("expected args to contain %q, got: %v", expected, m.LastArgs())
	}
}

// AssertArgsNotContain verifies that the last invocation args do NOT contain the expected string.
func (m *MockCommandRecorder) AssertArgsNotContain(t *testing.T, unexpected string) {
	t.Helper()
	argsStr := strings.Join(m.LastArgs(), " ")
	if strings.Contains(argsStr, unexpected) {
		t.Errorf("expected args to NOT contain %q, got: %v", unexpected, m.LastArgs())
	}
}

// AssertInvocationCount verifies the number of command invocations.
func (m *MockCommandRecorder) AssertInvocationCount(t *testing.T, expected int) {
	t.Helper()
	if len(m.Invocations) != expected {
		t.Errorf("expected %d invocations, got %d", expected, len(m.Invocations))
	}
}

// Reset clears all recorded invocations.
func (m *MockCommandRecorder) Reset() {
	m.Invocations = m.Invocations[:0]
}

// TestHelperProcess is used by the mock to simulate command execution.
// It reads configuration from environment variables and outputs accordingly.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}

	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}

	os.Exit(exitCode)
}

// newMockDocker returns a DockerEngine whose commands are recorded by recorder.
func newMockDocker(t *testing.T, recorder *MockCommandRecorder) *DockerEngine {
	t.Helper()
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/docker",
			WithName("docker"),
			WithExecCommand(recorder.ContextCommandFunc(t)),
		),
	}
}

// newMockPodman returns a PodmanEngine whose commands are recorded by recorder.
func newMockPodman(t *testing.T, recorder *MockCommandRecorder) *PodmanEngine {
	t.Helper()
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/podman",
			WithName("podman"),
			WithExecCommand(recorder.ContextCommandFunc(t)),
			WithVolumeFormatter(addSELinuxLabel),
			WithRunArgsTransformer(injectKeepID),
		),
	}
}

// withSELinux forces the SELinux detection result for the duration of a test.
func withSELinux(t *testing.T, enabled bool) {
	t.Helper()
	old := selinuxEnabled
	selinuxEnabled = func() bool { return enabled }
	t.Cleanup(func() { selinuxEnabled = old })
}
