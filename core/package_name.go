// Package core defines package identity, manifests, and the pluggable
// source layer the version solver queries.
//
// A package is identified by a PackageRef (name + source + source-defined
// description). PackageRange adds a version constraint (a dependency edge)
// and PackageID adds a concrete version (a resolved choice).
package core

import (
	"fmt"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// PackageKey is the comparable identity of a package, used for map keys.
// Refs that are SamePackage have equal keys.
type PackageKey struct {
	Name        string
	Source      string
	Description uint64
}

// IDKey is the comparable identity of a PackageID.
type IDKey struct {
	PackageKey
	Version string
}

// String renders the key as a single string, for APIs keyed by strings.
func (k IDKey) String() string {
	return fmt.Sprintf("%s\x00%s\x00%x\x00%s", k.Source, k.Name, k.Description, k.Version)
}

// RangeKey is the comparable identity of a PackageRange.
type RangeKey struct {
	PackageKey
	Constraint string
}

// PackageRef names a package without saying which version.
// The root package has a nil Source.
type PackageRef struct {
	Name        string
	Source      Source
	Description any
}

// NewRootRef returns the ref of a root package, which belongs to no source.
func NewRootRef(name string) PackageRef {
	return PackageRef{Name: name}
}

// IsRoot returns true for the root package.
func (r PackageRef) IsRoot() bool {
	return r.Source == nil
}

// SourceName returns the name of the ref's source, or "root".
func (r PackageRef) SourceName() string {
	if r.Source == nil {
		return "root"
	}
	return r.Source.Name()
}

// SamePackage reports whether two refs denote the same package: equal names
// and either both root, or the same source considering the descriptions equal.
func (r PackageRef) SamePackage(other PackageRef) bool {
	if r.Name != other.Name {
		return false
	}
	if r.Source == nil || other.Source == nil {
		return r.Source == nil && other.Source == nil
	}
	if r.Source.Name() != other.Source.Name() {
		return false
	}
	return r.Source.DescriptionsEqual(r.Description, other.Description)
}

// Key returns the ref's comparable identity.
func (r PackageRef) Key() PackageKey {
	if r.Source == nil {
		return PackageKey{Name: r.Name}
	}
	return PackageKey{
		Name:        r.Name,
		Source:      r.Source.Name(),
		Description: r.Source.HashDescription(r.Description),
	}
}

// ToRef returns the ref itself; it exists so ranges and ids share the method.
func (r PackageRef) ToRef() PackageRef {
	return r
}

// WithConstraint returns a range over this package.
func (r PackageRef) WithConstraint(c version.Constraint) PackageRange {
	return PackageRange{PackageRef: r, Constraint: c}
}

// WithVersion returns an id for one version of this package.
func (r PackageRef) WithVersion(v *version.Version) PackageID {
	return PackageID{PackageRef: r, Version: v}
}

func (r PackageRef) String() string {
	return r.Name
}

// PackageRange is a dependency edge: a package with a version constraint.
type PackageRange struct {
	PackageRef
	Constraint version.Constraint
}

// NewPackageRange is shorthand for ref.WithConstraint(c).
func NewPackageRange(ref PackageRef, c version.Constraint) PackageRange {
	return ref.WithConstraint(c)
}

// Allows returns true if id is the same package at a version the constraint allows.
func (r PackageRange) Allows(id PackageID) bool {
	return r.SamePackage(id.PackageRef) && r.Constraint.Allows(id.Version)
}

// Key returns the range's comparable identity.
func (r PackageRange) Key() RangeKey {
	return RangeKey{PackageKey: r.PackageRef.Key(), Constraint: r.Constraint.String()}
}

// Equal reports whether both ranges are the same package with an equal constraint.
func (r PackageRange) Equal(other PackageRange) bool {
	return r.SamePackage(other.PackageRef) && version.Equal(r.Constraint, other.Constraint)
}

// String renders the range with caret constraints spelled tersely
// ("a ^1.0.0"). The root package and unconstrained ranges render as the
// bare name.
func (r PackageRange) String() string {
	if r.IsRoot() || r.Constraint == nil || r.Constraint.IsAny() {
		return r.Name
	}
	return r.Name + " " + version.Terse(r.Constraint)
}

// PackageID is a resolved choice: one concrete version of a package.
type PackageID struct {
	PackageRef
	Version *version.Version
}

// NewPackageID is shorthand for ref.WithVersion(v).
func NewPackageID(ref PackageRef, v *version.Version) PackageID {
	return ref.WithVersion(v)
}

// ToRange returns a range allowing only this id's version.
func (id PackageID) ToRange() PackageRange {
	return id.WithConstraint(version.Exactly(id.Version))
}

// Key returns the id's comparable identity.
func (id PackageID) Key() IDKey {
	return IDKey{PackageKey: id.PackageRef.Key(), Version: id.Version.String()}
}

// Equal reports whether both ids are the same package at the same version.
func (id PackageID) Equal(other PackageID) bool {
	return id.SamePackage(other.PackageRef) && id.Version.Equal(other.Version)
}

// String renders "name version", or just the name for the root package.
func (id PackageID) String() string {
	if id.IsRoot() || id.Version == nil {
		return id.Name
	}
	return id.Name + " " + id.Version.String()
}
