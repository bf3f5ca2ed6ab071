package install

import (
	"errors"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/core/solver"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// UserError is a request the user has to fix, such as a malformed module list.
type UserError struct {
	Message string
	Err     error
}

// NewUserError creates a UserError without a cause.
func NewUserError(message string) *UserError {
	return &UserError{Message: message}
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// IsUserError reports whether err is caused by the request rather than by
// the service: unsatisfiable constraints, malformed manifests, versions or
// constraints, missing packages and invalid module lists. Callers map
// these to a 4xx-class response and everything else to a server error.
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	var ue *UserError
	return errors.As(err, &ue) ||
		solver.IsSolveFailure(err) ||
		core.IsManifestError(err) ||
		version.IsFormatError(err) ||
		core.IsPackageNotFound(err)
}
