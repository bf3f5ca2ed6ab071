// Package version provides build-time version information for the obs CLI.
// Version information is injected at build time using -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via -ldflags -X
var (
	// Version is the semantic version (e.g., "v3.0.0" or "dev")
	Version = "dev"

	// Commit is the short git commit SHA
	Commit = "none"

	// Date is the build timestamp in ISO 8601 format
	Date = "unknown"

	GoVersion = runtime.Version()
)

// Info returns a one-line version string.
func Info() string {
	return fmt.Sprintf("obs version %s (commit: %s, built: %s)", Version, Commit, Date)
}

// FullInfo adds the Go version to Info.
func FullInfo() string {
	return fmt.Sprintf("obs version %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}
