package commands

import (
	"context"
	"errors"

	"github.com/adambraimbridge/origami-build-service-v3/install"
)

// Exit codes
const (
	ExitOK          = 0
	ExitUserError   = 1
	ExitServerError = 2
	ExitInterrupted = 130
)

// ExitCode maps a command error to the process exit status. Problems the
// user can fix, such as an unsatisfiable module list, exit with 1; registry
// and I/O failures exit with 2.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case install.IsUserError(err):
		return ExitUserError
	default:
		return ExitServerError
	}
}
