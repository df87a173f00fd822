// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "build environment image"},
			expected: "failed to build environment image",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "build environment image",
				Resource:  "testbox-env:1.78-0123456789ab",
			},
			expected: "failed to build environment image: testbox-env:1.78-0123456789ab",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "read environment definition",
				Resource:  "./Dockerfile.test",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to read environment definition: ./Dockerfile.test: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := NewErrorContext().WithOperation("remove volume").Wrap(sentinel).BuildError()
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if NewErrorContext().Wrap(sentinel).BuildError() != nil {
		t.Error("BuildError without an operation should return a nil error")
	}
}

func TestActionableError_Format(t *testing.T) {
	inner := errors.New("exit status 1")
	err := NewErrorContext().
		WithOperation("build environment image").
		WithSuggestion("Check the Dockerfile").
		WithSuggestion("Retry with --clean").
		Wrap(errors.Join(inner)).
		Build()

	short := err.Format(false)
	if !strings.Contains(short, "  • Check the Dockerfile") || !strings.Contains(short, "  • Retry with --clean") {
		t.Errorf("suggestions missing from %q", short)
	}
	if strings.Contains(short, "Error chain:") {
		t.Errorf("non-verbose output should not include the chain: %q", short)
	}

	long := err.Format(true)
	if !strings.Contains(long, "Error chain:") || !strings.Contains(long, "1. exit status 1") {
		t.Errorf("verbose output should include the chain: %q", long)
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}
}
