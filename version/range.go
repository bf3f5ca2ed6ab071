package version

import (
	"strings"
)

// Range is a contiguous interval of versions.
//
// A nil Min or Max means the range is unbounded on that side. The zero
// Range allows every version.
type Range struct {
	// Min is the lower bound (nil = unbounded)
	Min *Version

	// Max is the upper bound (nil = unbounded)
	Max *Version

	// IncludeMin indicates whether Min itself is allowed
	IncludeMin bool

	// IncludeMax indicates whether Max itself is allowed
	IncludeMax bool
}

// IsAny returns true if the range has no bounds.
func (r Range) IsAny() bool {
	return r.Min == nil && r.Max == nil
}

// IsEmpty returns true if no version fits between the bounds.
func (r Range) IsEmpty() bool {
	return r.isEmpty()
}

// Allows returns true if min <= v <= max, respecting bound inclusivity.
func (r Range) Allows(v *Version) bool {
	if r.Min != nil {
		c := v.Compare(r.Min)
		if c < 0 || (c == 0 && !r.IncludeMin) {
			return false
		}
	}
	if r.Max != nil {
		c := v.Compare(r.Max)
		if c > 0 || (c == 0 && !r.IncludeMax) {
			return false
		}
	}
	return true
}

// AllowsAll implements Constraint.
func (r Range) AllowsAll(other Constraint) bool { return allowsAll(r, other) }

// AllowsAny implements Constraint.
func (r Range) AllowsAny(other Constraint) bool { return allowsAny(r, other) }

// Intersect implements Constraint.
func (r Range) Intersect(other Constraint) Constraint { return intersect(r, other) }

// Union implements Constraint.
func (r Range) Union(other Constraint) Constraint { return union(r, other) }

// Difference implements Constraint.
func (r Range) Difference(other Constraint) Constraint { return difference(r, other) }

// String returns the comparator form of the range, e.g. ">=1.0.0 <2.0.0".
func (r Range) String() string {
	if r.isEmpty() {
		return "<empty>"
	}
	if r.IsAny() {
		return "any"
	}
	if r.isExact() {
		return r.Min.String()
	}

	var parts []string
	if r.Min != nil {
		if r.IncludeMin {
			parts = append(parts, ">="+r.Min.String())
		} else {
			parts = append(parts, ">"+r.Min.String())
		}
	}
	if r.Max != nil {
		if r.IncludeMax {
			parts = append(parts, "<="+r.Max.String())
		} else {
			parts = append(parts, "<"+r.Max.String())
		}
	}
	return strings.Join(parts, " ")
}

func (r Range) ranges() []Range {
	if r.isEmpty() {
		return nil
	}
	return []Range{r.clean()}
}

func (r Range) isEmpty() bool {
	if r.Min == nil || r.Max == nil {
		return false
	}
	c := r.Min.Compare(r.Max)
	return c > 0 || (c == 0 && !(r.IncludeMin && r.IncludeMax))
}

func (r Range) isExact() bool {
	return r.Min != nil && r.Max != nil && r.IncludeMin && r.IncludeMax && r.Min.Equal(r.Max)
}

func (r Range) isCaret() bool {
	return r.Min != nil && r.Max != nil && r.IncludeMin && !r.IncludeMax &&
		!r.Min.IsPreRelease() && r.Max.Equal(r.Min.NextBreaking())
}

// clean drops inclusivity flags on missing bounds so equal ranges compare equal.
func (r Range) clean() Range {
	if r.Min == nil {
		r.IncludeMin = false
	}
	if r.Max == nil {
		r.IncludeMax = false
	}
	return r
}

func (r Range) equal(other Range) bool {
	return r.Min.Equal(other.Min) && r.Max.Equal(other.Max) &&
		r.IncludeMin == other.IncludeMin && r.IncludeMax == other.IncludeMax
}

// compareLower orders ranges by lower bound; an unbounded or inclusive
// bound sorts first.
func compareLower(a, b Range) int {
	switch {
	case a.Min == nil && b.Min == nil:
		return 0
	case a.Min == nil:
		return -1
	case b.Min == nil:
		return 1
	}
	if c := a.Min.Compare(b.Min); c != 0 {
		return c
	}
	switch {
	case a.IncludeMin == b.IncludeMin:
		return 0
	case a.IncludeMin:
		return -1
	default:
		return 1
	}
}

// compareUpper orders ranges by upper bound; an unbounded or inclusive
// bound sorts last.
func compareUpper(a, b Range) int {
	switch {
	case a.Max == nil && b.Max == nil:
		return 0
	case a.Max == nil:
		return 1
	case b.Max == nil:
		return -1
	}
	if c := a.Max.Compare(b.Max); c != 0 {
		return c
	}
	switch {
	case a.IncludeMax == b.IncludeMax:
		return 0
	case a.IncludeMax:
		return 1
	default:
		return -1
	}
}

// touches reports whether b, which starts no earlier than a, overlaps or is
// adjacent to a so the two can merge into one range.
func touches(a, b Range) bool {
	if a.Max == nil || b.Min == nil {
		return true
	}
	c := a.Max.Compare(b.Min)
	if c != 0 {
		return c > 0
	}
	return a.IncludeMax || b.IncludeMin
}

func intersectRange(a, b Range) (Range, bool) {
	var r Range
	if compareLower(a, b) >= 0 {
		r.Min, r.IncludeMin = a.Min, a.IncludeMin
	} else {
		r.Min, r.IncludeMin = b.Min, b.IncludeMin
	}
	if compareUpper(a, b) <= 0 {
		r.Max, r.IncludeMax = a.Max, a.IncludeMax
	} else {
		r.Max, r.IncludeMax = b.Max, b.IncludeMax
	}
	if r.isEmpty() {
		return Range{}, false
	}
	return r, true
}
