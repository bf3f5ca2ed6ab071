package version

import (
	"strconv"
)

// Compare compares two versions by semantic version precedence.
// Returns -1 if v < other, 0 if equal, 1 if v > other.
// Build metadata is ignored.
func (v *Version) Compare(other *Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePreRelease(v.PreRelease, other.PreRelease)
}

// Equal returns true if both versions have the same precedence.
func (v *Version) Equal(other *Version) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.Compare(other) == 0
}

// LessThan returns true if v sorts before other.
func (v *Version) LessThan(other *Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan returns true if v sorts after other.
func (v *Version) GreaterThan(other *Version) bool {
	return v.Compare(other) > 0
}

// Compare is the function form of (*Version).Compare, usable with slices.SortFunc.
func Compare(a, b *Version) int {
	return a.Compare(b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePreRelease orders pre-release identifier lists.
// A release (no identifiers) sorts after any pre-release.
func comparePreRelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}

	return compareInt(len(a), len(b))
}

// compareIdentifier compares numeric identifiers numerically; numeric
// identifiers have lower precedence than alphanumeric ones.
func compareIdentifier(a, b string) int {
	aNum, bNum := isNumeric(a), isNumeric(b)

	switch {
	case aNum && bNum:
		ai, errA := strconv.Atoi(a)
		bi, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			return compareInt(ai, bi)
		}
		return compareInt(len(a), len(b))
	case aNum:
		return -1
	case bNum:
		return 1
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
