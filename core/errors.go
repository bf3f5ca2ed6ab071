package core

import (
	"errors"
	"fmt"
)

// ManifestError reports a structurally invalid manifest field.
type ManifestError struct {
	// Package is the manifest's name, or empty when the name itself is invalid
	Package string

	// Version is the manifest's version text, if known
	Version string

	// Field is the manifest field that failed validation
	Field string

	// Message describes the problem, including the offending value
	Message string
}

// Error implements error. The message is prefixed with "name@version: "
// when the package is known.
func (e *ManifestError) Error() string {
	switch {
	case e.Package == "":
		return e.Message
	case e.Version == "":
		return fmt.Sprintf("%s: %s", e.Package, e.Message)
	default:
		return fmt.Sprintf("%s@%s: %s", e.Package, e.Version, e.Message)
	}
}

// PackageNotFoundError reports that a package or version is absent from its source.
type PackageNotFoundError struct {
	// Package is the missing package's name
	Package string

	// Version is the missing version, empty when the whole package is missing
	Version string

	// Message is the source's explanation
	Message string

	// Err is the underlying source error, if any
	Err error
}

// NewPackageNotFoundError creates a not-found error for a package or version.
func NewPackageNotFoundError(name, version string, cause error) *PackageNotFoundError {
	msg := fmt.Sprintf("could not find package %s", name)
	if version != "" {
		msg = fmt.Sprintf("could not find package %s at version %s", name, version)
	}
	return &PackageNotFoundError{Package: name, Version: version, Message: msg, Err: cause}
}

func (e *PackageNotFoundError) Error() string {
	return e.Message
}

func (e *PackageNotFoundError) Unwrap() error {
	return e.Err
}

// ApplicationError is a generic operational failure the user cannot fix by
// changing the request, such as a storage credential being rejected.
type ApplicationError struct {
	Message string
	Err     error
}

// NewApplicationError wraps cause with a message.
func NewApplicationError(message string, cause error) *ApplicationError {
	return &ApplicationError{Message: message, Err: cause}
}

func (e *ApplicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// IsPackageNotFound reports whether err is or wraps a *PackageNotFoundError.
func IsPackageNotFound(err error) bool {
	var nf *PackageNotFoundError
	return errors.As(err, &nf)
}

// IsManifestError reports whether err is or wraps a *ManifestError.
func IsManifestError(err error) bool {
	var me *ManifestError
	return errors.As(err, &me)
}
