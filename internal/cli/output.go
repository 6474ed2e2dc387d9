package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

// Process exit codes. A declined confirmation is not a failure: the outcome
// is written as aborted and the process exits 0.
const (
	ExitSuccess      = 0 // succeeded, or aborted at the confirmation prompt
	ExitFailure      = 1 // the outcome was written with status failed
	ExitCommandError = 2 // nothing was dispatched: bad flags, arguments or config
)

// ExitError carries an exit code out of a cobra RunE. A failed outcome has
// already been written as an envelope, so its ExitError has no Message and
// Execute prints nothing more for it.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err != nil && e.Message == "":
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError reports a problem found before anything was dispatched.
func usageError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

// outcomeError maps an emitted outcome to the command's result: nil unless the
// outcome failed.
func outcomeError(out *dispatch.Outcome) error {
	if out.Status != dispatch.Failed {
		return nil
	}
	return &ExitError{Code: ExitFailure}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError come from cobra's own argument handling and are usage errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Execute runs cmd, reports any error not already written as an outcome and
// returns the process exit code.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)
	}
	return GetExitCode(err)
}

// newEmitter returns the outcome emitter for format.
func newEmitter(format string, out, errOut io.Writer) dispatch.Emitter {
	if format == "json" {
		return &dispatch.JSONEmitter{Writer: out, Indent: true}
	}
	return &dispatch.TextEmitter{Writer: out, ErrWriter: errOut}
}
