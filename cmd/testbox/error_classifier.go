// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"testbox-cli/internal/app/execute"
	"testbox-cli/internal/cachestore"
	"testbox-cli/internal/config"
	"testbox-cli/internal/container"
	"testbox-cli/internal/identity"
	"testbox-cli/internal/issue"
)

// classifyError maps a failure to the issue catalog entry that explains it.
// It returns 0 when no entry applies.
func classifyError(err error) issue.Id {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrInvalidArguments):
		return issue.InvalidArgumentsId
	case errors.Is(err, container.ErrNoEngineAvailable):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, identity.ErrDefinitionUnreadable):
		return issue.DefinitionNotFoundId
	case errors.Is(err, cachestore.ErrBuildFailed):
		return issue.ImageBuildFailedId
	case errors.Is(err, execute.ErrExecutionFailed):
		return issue.ContainerLaunchFailedId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	case errors.As(err, &exitErr) && exitErr.Code == ExitConfigError:
		return issue.ConfigLoadFailedId
	default:
		return 0
	}
}

// renderIssue writes the catalog page for err to w. Pages are rendered
// with the dark glamour style on terminals and without styling elsewhere.
func renderIssue(w io.Writer, err error) {
	id := classifyError(err)
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}

	style := "notty"
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = "dark"
	}

	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		log.Warn("failed to render issue catalog entry", "issueID", id, "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
