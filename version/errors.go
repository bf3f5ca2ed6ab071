package version

import (
	"errors"
	"fmt"
)

// FormatError reports malformed version or constraint text.
type FormatError struct {
	// Kind is what was being parsed ("version" or "constraint")
	Kind string

	// Input is the offending text
	Input string

	// Reason describes what is wrong with Input
	Reason string
}

func newFormatError(kind, input, reason string) *FormatError {
	return &FormatError{Kind: kind, Input: input, Reason: reason}
}

// Error implements error.
func (e *FormatError) Error() string {
	return fmt.Sprintf("could not parse %s %q: %s", e.Kind, e.Input, e.Reason)
}

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

var errEmptyComponent = errors.New("empty component")

func errNonNumeric(s string) error {
	return fmt.Errorf("%q is not a number", s)
}

func errInvalidIdentifier(s string) error {
	return fmt.Errorf("%q contains invalid characters", s)
}
