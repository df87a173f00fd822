// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"testbox-cli/internal/config"
)

const (
	// ExitOK is returned when every step succeeded and the tests passed.
	ExitOK = 0
	// ExitFailure is returned for internal failures (build, engine, I/O).
	ExitFailure = 1
	// ExitConfigError is returned for invalid arguments or settings.
	ExitConfigError = 2
	// ExitInterrupted is returned after SIGINT cancels the run.
	ExitInterrupted = 130
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps the error returned by the command tree to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, config.ErrInvalidArguments),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidContainerEngine):
		return ExitConfigError
	default:
		return ExitFailure
	}
}
