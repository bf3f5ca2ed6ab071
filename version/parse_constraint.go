package version

import (
	"strings"
)

// ParseConstraint parses a version constraint.
//
// Supported forms:
//   - any, *, x: every version
//   - 1.2.3 or =1.2.3: exactly that version
//   - >1.2.3, >=1.2.3, <1.2.3, <=1.2.3: comparators
//   - ^1.2.3: compatible with 1.2.3 (up to the next breaking version)
//   - ~1.2.3: >=1.2.3 <1.3.0
//   - 1, 1.2, 1.x, 1.2.x: partial versions
//   - 1.0.0 - 2.0.0: inclusive hyphen range
//
// Space-separated comparators are intersected and "||" separates
// alternatives that are unioned.
func ParseConstraint(text string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, newFormatError("constraint", text, "constraint cannot be empty")
	}

	var alternatives []Constraint
	for _, alt := range strings.Split(trimmed, "||") {
		c, err := parseAlternative(strings.TrimSpace(alt))
		if err != nil {
			return nil, newFormatError("constraint", text, err.Error())
		}
		alternatives = append(alternatives, c)
	}

	return UnionOf(alternatives...), nil
}

// MustParseConstraint parses a constraint and panics on error.
// Use only in tests or with known-valid constraint strings.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

// StripVCSPrefix returns the fragment of a VCS URL dependency spec such as
// "https://github.com/owner/repo.git#^1.2.0". Other specs are returned as is.
func StripVCSPrefix(spec string) string {
	idx := strings.LastIndexByte(spec, '#')
	if idx < 0 {
		return spec
	}
	if IsVCSURL(spec[:idx]) {
		return spec[idx+1:]
	}
	return spec
}

// IsVCSURL reports whether spec names a repository rather than a version
// constraint or a registry package.
func IsVCSURL(spec string) bool {
	return strings.Contains(spec, "://") || strings.HasPrefix(spec, "git@") || strings.HasSuffix(spec, ".git")
}

func parseAlternative(s string) (Constraint, error) {
	if s == "" {
		return nil, errEmptyComponent
	}

	if lo, hi, ok := strings.Cut(s, " - "); ok {
		return parseHyphen(strings.TrimSpace(lo), strings.TrimSpace(hi))
	}

	var result Constraint = Any()
	for _, token := range comparatorTokens(s) {
		c, err := parseComparator(token)
		if err != nil {
			return nil, err
		}
		result = result.Intersect(c)
	}
	return result, nil
}

// comparatorTokens splits on whitespace and glues a bare operator to the
// version that follows it (">= 1.0.0").
func comparatorTokens(s string) []string {
	fields := strings.Fields(s)
	var tokens []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) && i+1 < len(fields) {
			f += fields[i+1]
			i++
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isOperator(s string) bool {
	switch s {
	case ">", ">=", "<", "<=", "=", "^", "~":
		return true
	}
	return false
}

func parseComparator(token string) (Constraint, error) {
	switch token {
	case "any", "*", "x", "X":
		return Any(), nil
	}

	op := ""
	for _, candidate := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(token, candidate) {
			op = candidate
			break
		}
	}

	p, err := parsePartial(strings.TrimPrefix(token, op))
	if err != nil {
		return nil, err
	}

	switch op {
	case "", "=":
		if p.complete() {
			return Exactly(p.version()), nil
		}
		return p.span(), nil
	case ">":
		if p.complete() {
			return Range{Min: p.version()}, nil
		}
		return Range{Min: p.upper(), IncludeMin: true}, nil
	case ">=":
		return Range{Min: p.lower(), IncludeMin: true}, nil
	case "<":
		return Range{Max: p.lower()}, nil
	case "<=":
		if p.complete() {
			return Range{Max: p.version(), IncludeMax: true}, nil
		}
		return Range{Max: p.upper()}, nil
	case "^":
		if p.parts == 0 {
			return Any(), nil
		}
		low := p.lower()
		if p.parts == 1 {
			return Range{Min: low, Max: low.NextMajor(), IncludeMin: true}, nil
		}
		return CompatibleWith(low), nil
	case "~":
		if p.parts == 0 {
			return Any(), nil
		}
		low := p.lower()
		if p.parts == 1 {
			return Range{Min: low, Max: low.NextMajor(), IncludeMin: true}, nil
		}
		return Range{Min: low, Max: New(low.Major, low.Minor+1, 0), IncludeMin: true}, nil
	}

	return nil, errInvalidIdentifier(token)
}

func parseHyphen(lo, hi string) (Constraint, error) {
	low, err := parsePartial(lo)
	if err != nil {
		return nil, err
	}
	high, err := parsePartial(hi)
	if err != nil {
		return nil, err
	}

	r := Range{Min: low.lower(), IncludeMin: true}
	if high.complete() {
		r.Max, r.IncludeMax = high.version(), true
	} else if high.parts > 0 {
		r.Max = high.upper()
	}
	if low.parts == 0 {
		r.Min, r.IncludeMin = nil, false
	}
	return r, nil
}

// partial is a version that may omit trailing components ("1.2", "1.x").
type partial struct {
	nums  [3]int
	parts int // number of concrete numeric components
	pre   []string
	build []string
}

func parsePartial(s string) (partial, error) {
	var p partial
	if s == "" {
		return p, errEmptyComponent
	}

	text := s
	if idx := strings.IndexByte(text, '+'); idx >= 0 {
		ids, err := parseIdentifiers(text[idx+1:], false)
		if err != nil {
			return p, err
		}
		p.build = ids
		text = text[:idx]
	}
	if idx := strings.IndexByte(text, '-'); idx >= 0 {
		ids, err := parseIdentifiers(text[idx+1:], true)
		if err != nil {
			return p, err
		}
		p.pre = ids
		text = text[:idx]
	}

	comps := strings.Split(text, ".")
	if len(comps) > 3 {
		return p, errInvalidIdentifier(s)
	}

	wildcard := false
	for i, comp := range comps {
		if comp == "x" || comp == "X" || comp == "*" {
			wildcard = true
			continue
		}
		if wildcard {
			return p, errInvalidIdentifier(s)
		}
		n, err := parseNumber(comp)
		if err != nil {
			return p, err
		}
		p.nums[i] = n
		p.parts = i + 1
	}

	if (p.pre != nil || p.build != nil) && !p.complete() {
		return p, errInvalidIdentifier(s)
	}
	return p, nil
}

func (p partial) complete() bool { return p.parts == 3 }

func (p partial) version() *Version {
	return &Version{Major: p.nums[0], Minor: p.nums[1], Patch: p.nums[2], PreRelease: p.pre, Build: p.build}
}

// lower is the smallest version the partial matches.
func (p partial) lower() *Version {
	if p.complete() {
		return p.version()
	}
	return New(p.nums[0], p.nums[1], p.nums[2])
}

// upper is the smallest version above everything the partial matches.
func (p partial) upper() *Version {
	switch p.parts {
	case 1:
		return New(p.nums[0]+1, 0, 0)
	case 2:
		return New(p.nums[0], p.nums[1]+1, 0)
	default:
		return p.version().NextPatch()
	}
}

// span is the range of versions a partial version matches.
func (p partial) span() Constraint {
	if p.parts == 0 {
		return Any()
	}
	return Range{Min: p.lower(), Max: p.upper(), IncludeMin: true}
}
