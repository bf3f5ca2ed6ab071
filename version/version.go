// Package version provides semantic version parsing, comparison and
// version constraints.
//
// It supports SemVer 2.0 versions (Major.Minor.Patch[-PreRelease][+Build])
// and a set algebra over constraints that the version solver relies on.
//
// Example:
//
//	v, err := version.Parse("1.2.3-beta.1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(v.Major, v.Minor, v.Patch) // 1 2 3
package version

import (
	"strconv"
	"strings"
)

// Version represents a semantic version.
//
// Versions are immutable once parsed. Build metadata is kept for display
// but ignored when comparing.
type Version struct {
	// Major version number
	Major int

	// Minor version number
	Minor int

	// Patch version number
	Patch int

	// PreRelease contains pre-release identifiers (e.g., ["beta", "1"] for "1.0.0-beta.1")
	PreRelease []string

	// Build contains build metadata identifiers (e.g., ["20241019"] for "1.0.0+20241019")
	Build []string
}

// None is the version given to manifests that do not declare one.
var None = &Version{}

// Parse parses a version string in canonical MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD] form.
func Parse(s string) (*Version, error) {
	if s == "" {
		return nil, newFormatError("version", s, "version string cannot be empty")
	}

	text := s
	v := &Version{}

	// Split off build metadata
	if idx := strings.IndexByte(text, '+'); idx >= 0 {
		build := text[idx+1:]
		text = text[:idx]
		ids, err := parseIdentifiers(build, false)
		if err != nil {
			return nil, newFormatError("version", s, "invalid build metadata: "+err.Error())
		}
		v.Build = ids
	}

	// Split off pre-release
	if idx := strings.IndexByte(text, '-'); idx >= 0 {
		pre := text[idx+1:]
		text = text[:idx]
		ids, err := parseIdentifiers(pre, true)
		if err != nil {
			return nil, newFormatError("version", s, "invalid pre-release: "+err.Error())
		}
		v.PreRelease = ids
	}

	parts := strings.Split(text, ".")
	if len(parts) != 3 {
		return nil, newFormatError("version", s, "expected MAJOR.MINOR.PATCH")
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := parseNumber(part)
		if err != nil {
			return nil, newFormatError("version", s, err.Error())
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]

	return v, nil
}

// MustParse parses a version string and panics on error.
// Use only in tests or with known-valid version strings.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// New creates a release version from its numeric components.
func New(major, minor, patch int) *Version {
	return &Version{Major: major, Minor: minor, Patch: patch}
}

func parseNumber(s string) (int, error) {
	if s == "" {
		return 0, errEmptyComponent
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNonNumeric(s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseIdentifiers(s string, numericNormalize bool) ([]string, error) {
	if s == "" {
		return nil, errEmptyComponent
	}
	ids := strings.Split(s, ".")
	for i, id := range ids {
		if id == "" {
			return nil, errEmptyComponent
		}
		for _, r := range id {
			if !isIdentifierRune(r) {
				return nil, errInvalidIdentifier(id)
			}
		}
		if numericNormalize && isNumeric(id) {
			n, err := strconv.Atoi(id)
			if err != nil {
				return nil, err
			}
			ids[i] = strconv.Itoa(n)
		}
	}
	return ids, nil
}

func isIdentifierRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsPreRelease returns true if the version has pre-release identifiers.
func (v *Version) IsPreRelease() bool {
	return len(v.PreRelease) > 0
}

// NextMajor returns the next major version, dropping lower components.
func (v *Version) NextMajor() *Version {
	return New(v.Major+1, 0, 0)
}

// NextMinor returns the next minor version, dropping lower components.
func (v *Version) NextMinor() *Version {
	return New(v.Major, v.Minor+1, 0)
}

// NextPatch returns the next patch version.
// A pre-release version's next patch is its own release.
func (v *Version) NextPatch() *Version {
	if v.IsPreRelease() {
		return New(v.Major, v.Minor, v.Patch)
	}
	return New(v.Major, v.Minor, v.Patch+1)
}

// NextBreaking returns the smallest version a caret constraint on v excludes.
//
// For 0.x versions the minor component is the breaking one.
func (v *Version) NextBreaking() *Version {
	if v.Major == 0 {
		return v.NextMinor()
	}
	return v.NextMajor()
}

// String returns the canonical string representation of the version.
func (v *Version) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(v.Major))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(v.Minor))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(v.Patch))

	if len(v.PreRelease) > 0 {
		sb.WriteByte('-')
		sb.WriteString(strings.Join(v.PreRelease, "."))
	}

	if len(v.Build) > 0 {
		sb.WriteByte('+')
		sb.WriteString(strings.Join(v.Build, "."))
	}

	return sb.String()
}
