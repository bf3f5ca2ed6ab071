package version

import (
	"slices"
	"strings"
)

// Constraint is a set of versions.
//
// The variants are any, empty, a single Range and a Union of ranges.
// Every operation returns the simplest equivalent variant, so two
// constraints that allow the same versions are structurally Equal.
type Constraint interface {
	// IsAny returns true if the constraint allows every version.
	IsAny() bool

	// IsEmpty returns true if the constraint allows no version.
	IsEmpty() bool

	// Allows returns true if v is in the set.
	Allows(v *Version) bool

	// AllowsAll returns true if every version other allows is allowed.
	AllowsAll(other Constraint) bool

	// AllowsAny returns true if at least one version other allows is allowed.
	AllowsAny(other Constraint) bool

	// Intersect returns the versions allowed by both constraints.
	Intersect(other Constraint) Constraint

	// Union returns the versions allowed by either constraint.
	Union(other Constraint) Constraint

	// Difference returns the versions allowed by this constraint and not by other.
	Difference(other Constraint) Constraint

	String() string

	ranges() []Range
}

// Any returns the constraint that allows every version.
func Any() Constraint {
	return Range{}
}

// Empty returns the constraint that allows no version.
func Empty() Constraint {
	return emptyConstraint{}
}

// Exactly returns the constraint that allows only v.
func Exactly(v *Version) Constraint {
	return Range{Min: v, Max: v, IncludeMin: true, IncludeMax: true}
}

// CompatibleWith returns the caret constraint for v: v inclusive up to
// v.NextBreaking() exclusive.
func CompatibleWith(v *Version) Constraint {
	return Range{Min: v, Max: v.NextBreaking(), IncludeMin: true}
}

// Equal reports whether two constraints allow exactly the same versions.
func Equal(a, b Constraint) bool {
	ra, rb := a.ranges(), b.ranges()
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if !ra[i].equal(rb[i]) {
			return false
		}
	}
	return true
}

// UnionOf returns the union of all given constraints.
func UnionOf(constraints ...Constraint) Constraint {
	var all []Range
	for _, c := range constraints {
		all = append(all, c.ranges()...)
	}
	return normalize(all)
}

// Terse renders a constraint the way dependency declarations usually spell
// it: caret ranges print as ^v.
func Terse(c Constraint) string {
	rs := c.ranges()
	if len(rs) == 0 {
		return c.String()
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		if r.isCaret() {
			parts[i] = "^" + r.Min.String()
		} else {
			parts[i] = r.String()
		}
	}
	return strings.Join(parts, " || ")
}

type emptyConstraint struct{}

func (emptyConstraint) IsAny() bool                       { return false }
func (emptyConstraint) IsEmpty() bool                     { return true }
func (emptyConstraint) Allows(*Version) bool              { return false }
func (emptyConstraint) AllowsAll(other Constraint) bool   { return other.IsEmpty() }
func (emptyConstraint) AllowsAny(Constraint) bool         { return false }
func (emptyConstraint) Intersect(Constraint) Constraint   { return emptyConstraint{} }
func (emptyConstraint) Union(other Constraint) Constraint { return normalize(other.ranges()) }
func (emptyConstraint) Difference(Constraint) Constraint  { return emptyConstraint{} }
func (emptyConstraint) String() string                    { return "<empty>" }
func (emptyConstraint) ranges() []Range                   { return nil }

// normalize sorts, merges and collapses ranges into the simplest constraint.
func normalize(in []Range) Constraint {
	rs := make([]Range, 0, len(in))
	for _, r := range in {
		if r.isEmpty() {
			continue
		}
		rs = append(rs, r.clean())
	}
	if len(rs) == 0 {
		return emptyConstraint{}
	}

	slices.SortFunc(rs, compareLower)

	merged := []Range{rs[0]}
	for _, r := range rs[1:] {
		last := &merged[len(merged)-1]
		if !touches(*last, r) {
			merged = append(merged, r)
			continue
		}
		if compareUpper(r, *last) > 0 {
			last.Max, last.IncludeMax = r.Max, r.IncludeMax
		}
	}

	if len(merged) == 1 {
		return merged[0]
	}
	return Union(merged)
}

// complement returns the ranges not covered by rs, which must be normalized.
func complement(rs []Range) []Range {
	if len(rs) == 0 {
		return []Range{{}}
	}

	var out []Range
	if first := rs[0]; first.Min != nil {
		out = append(out, Range{Max: first.Min, IncludeMax: !first.IncludeMin})
	}
	for i := 1; i < len(rs); i++ {
		prev, next := rs[i-1], rs[i]
		out = append(out, Range{
			Min:        prev.Max,
			IncludeMin: !prev.IncludeMax,
			Max:        next.Min,
			IncludeMax: !next.IncludeMin,
		})
	}
	if last := rs[len(rs)-1]; last.Max != nil {
		out = append(out, Range{Min: last.Max, IncludeMin: !last.IncludeMax})
	}
	return out
}

func intersectAll(a, b []Range) Constraint {
	var out []Range
	for _, ra := range a {
		for _, rb := range b {
			if r, ok := intersectRange(ra, rb); ok {
				out = append(out, r)
			}
		}
	}
	return normalize(out)
}

func intersect(a, b Constraint) Constraint {
	return intersectAll(a.ranges(), b.ranges())
}

func union(a, b Constraint) Constraint {
	return normalize(append(slices.Clone(a.ranges()), b.ranges()...))
}

func difference(a, b Constraint) Constraint {
	return intersectAll(a.ranges(), complement(b.ranges()))
}

func allowsAll(a, b Constraint) bool {
	return difference(b, a).IsEmpty()
}

func allowsAny(a, b Constraint) bool {
	return !intersect(a, b).IsEmpty()
}
