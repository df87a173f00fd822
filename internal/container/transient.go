// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry: generic engine errors (exit code 125), rootless Podman
// races, network hiccups while pulling base images and storage driver glitches.
// Context cancellation is never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()

	if strings.Contains(errStr, "ping_group_range") ||
		strings.Contains(errStr, "OCI runtime error") {
		return true
	}

	if strings.Contains(errStr, "Temporary failure resolving") ||
		strings.Contains(errStr, "Could not resolve host") ||
		strings.Contains(errStr, "TLS handshake timeout") ||
		strings.Contains(errStr, "connection timed out") ||
		strings.Contains(errStr, "connection refused") {
		return true
	}

	if strings.Contains(errStr, "error creating overlay mount") ||
		strings.Contains(errStr, "error mounting layer") {
		return true
	}

	return false
}
