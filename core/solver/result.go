package solver

import (
	"time"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// SolveResult is a successful solve.
type SolveResult struct {
	// Root is the root package at its manifest version
	Root core.PackageID

	// Packages holds one selected version per package, sorted by name, root excluded
	Packages []core.PackageID

	// Dependencies are the dependency ranges declared by the root and the selected packages
	Dependencies []core.PackageRange

	// AttemptedSolutions counts the partial solutions tried, 1 if no backjump was needed
	AttemptedSolutions int

	// Duration is how long the solve took
	Duration time.Duration
}

// Versions returns the selected version of every package by name.
func (r *SolveResult) Versions() map[string]*version.Version {
	versions := make(map[string]*version.Version, len(r.Packages))
	for _, id := range r.Packages {
		versions[id.Name] = id.Version
	}
	return versions
}

// Package returns the selected id for name.
func (r *SolveResult) Package(name string) (core.PackageID, bool) {
	for _, id := range r.Packages {
		if id.Name == name {
			return id, true
		}
	}
	return core.PackageID{}, false
}
