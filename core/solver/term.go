package solver

import (
	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// SetRelation describes how the versions allowed by one term relate to
// those allowed by another.
type SetRelation int

const (
	// Subset means every selection the first term allows, the second allows too.
	Subset SetRelation = iota

	// Disjoint means no selection is allowed by both terms.
	Disjoint

	// Overlapping means some selections are allowed by both and some by only one.
	Overlapping
)

func (r SetRelation) String() string {
	switch r {
	case Subset:
		return "subset"
	case Disjoint:
		return "disjoint"
	default:
		return "overlapping"
	}
}

// Term is a statement about a package that is true or false for a
// selection of package versions. A positive term "foo ^1.0.0" is satisfied
// by selecting foo at a version in ^1.0.0; a negative term "not foo ^1.0.0"
// is satisfied by not selecting foo at all or selecting it outside ^1.0.0.
type Term struct {
	Package  core.PackageRange
	Positive bool
}

// NewTerm creates a term.
func NewTerm(pkg core.PackageRange, positive bool) Term {
	return Term{Package: pkg, Positive: positive}
}

// Constraint returns the term's version constraint.
func (t Term) Constraint() version.Constraint {
	return t.Package.Constraint
}

// Inverse returns the term with the opposite sign.
func (t Term) Inverse() Term {
	return Term{Package: t.Package, Positive: !t.Positive}
}

// Satisfies returns true if every selection that satisfies t also
// satisfies other. Both terms must be about packages with the same name.
func (t Term) Satisfies(other Term) bool {
	return t.Package.Name == other.Package.Name && t.Relation(other) == Subset
}

// Relation returns how the selections allowed by t relate to those allowed
// by other. Both terms must be about packages with the same name.
func (t Term) Relation(other Term) SetRelation {
	c, oc := t.Constraint(), other.Constraint()
	compatible := t.compatiblePackage(other.Package.PackageRef)

	switch {
	case other.Positive && t.Positive:
		if !compatible || !c.AllowsAny(oc) {
			return Disjoint
		}
		if oc.AllowsAll(c) {
			return Subset
		}
		return Overlapping

	case other.Positive:
		if !compatible {
			return Overlapping
		}
		if c.AllowsAll(oc) {
			return Disjoint
		}
		return Overlapping

	case t.Positive:
		// foo from hosted satisfies not foo from git.
		if !compatible || !oc.AllowsAny(c) {
			return Subset
		}
		if oc.AllowsAll(c) {
			return Disjoint
		}
		return Overlapping

	default:
		if !compatible {
			return Overlapping
		}
		if c.AllowsAll(oc) {
			return Subset
		}
		return Overlapping
	}
}

// Intersect returns a term that represents the selections allowed by both t
// and other. It returns false if no single term can: when the result would
// be empty, or when both terms are negative and about different packages
// that share a name.
func (t Term) Intersect(other Term) (Term, bool) {
	if t.compatiblePackage(other.Package.PackageRef) {
		switch {
		case t.Positive != other.Positive:
			// foo ^1.0.0 ∩ not foo ^1.5.0 -> foo >=1.0.0 <1.5.0
			positive, negative := t, other
			if !t.Positive {
				positive, negative = other, t
			}
			return nonEmptyTerm(positive.Package.PackageRef, positive.Constraint().Difference(negative.Constraint()), true)
		case t.Positive:
			// foo ^1.0.0 ∩ foo >=1.5.0 <3.0.0 -> foo ^1.5.0
			return nonEmptyTerm(t.Package.PackageRef, t.Constraint().Intersect(other.Constraint()), true)
		default:
			// not foo ^1.0.0 ∩ not foo >=1.5.0 <3.0.0 -> not foo >=1.0.0 <3.0.0
			return nonEmptyTerm(t.Package.PackageRef, t.Constraint().Union(other.Constraint()), false)
		}
	}

	if t.Positive != other.Positive {
		// foo from git ∩ not foo from hosted -> foo from git
		if t.Positive {
			return t, true
		}
		return other, true
	}
	return Term{}, false
}

// Difference returns a term that represents the selections allowed by t
// and not by other.
func (t Term) Difference(other Term) (Term, bool) {
	return t.Intersect(other.Inverse())
}

func (t Term) compatiblePackage(other core.PackageRef) bool {
	return t.Package.IsRoot() || other.IsRoot() || t.Package.SamePackage(other)
}

func nonEmptyTerm(ref core.PackageRef, c version.Constraint, positive bool) (Term, bool) {
	if c.IsEmpty() {
		return Term{}, false
	}
	return Term{Package: ref.WithConstraint(c), Positive: positive}, true
}

func (t Term) String() string {
	if t.Positive {
		return t.Package.String()
	}
	return "not " + t.Package.String()
}
