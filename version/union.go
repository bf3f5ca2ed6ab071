package version

import (
	"strings"
)

// Union is a set of two or more disjoint, non-adjacent ranges sorted by
// lower bound. Construct it through Constraint operations or UnionOf so
// the invariant holds.
type Union []Range

// IsAny implements Constraint. A normalized union never covers everything.
func (u Union) IsAny() bool { return false }

// IsEmpty implements Constraint.
func (u Union) IsEmpty() bool { return len(u) == 0 }

// Allows returns true if any member range allows v.
func (u Union) Allows(v *Version) bool {
	for _, r := range u {
		if r.Allows(v) {
			return true
		}
	}
	return false
}

// AllowsAll implements Constraint.
func (u Union) AllowsAll(other Constraint) bool { return allowsAll(u, other) }

// AllowsAny implements Constraint.
func (u Union) AllowsAny(other Constraint) bool { return allowsAny(u, other) }

// Intersect implements Constraint.
func (u Union) Intersect(other Constraint) Constraint { return intersect(u, other) }

// Union implements Constraint.
func (u Union) Union(other Constraint) Constraint { return union(u, other) }

// Difference implements Constraint.
func (u Union) Difference(other Constraint) Constraint { return difference(u, other) }

func (u Union) String() string {
	parts := make([]string, len(u))
	for i, r := range u {
		parts[i] = r.String()
	}
	return strings.Join(parts, " || ")
}

func (u Union) ranges() []Range { return u }
