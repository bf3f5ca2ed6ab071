package solver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// CauseKind says why an incompatibility was added.
type CauseKind int

const (
	// CauseRoot is the incompatibility stating the root package is selected.
	CauseRoot CauseKind = iota

	// CauseDependency comes from a dependency declared in a manifest.
	CauseDependency

	// CauseNoVersions means no versions match a constraint.
	CauseNoVersions

	// CauseUnknownSource means the package comes from a source that is not configured.
	CauseUnknownSource

	// CausePackageNotFound means the package's source could not list it.
	CausePackageNotFound

	// CauseConflict is derived from two other incompatibilities during
	// conflict resolution.
	CauseConflict
)

func (k CauseKind) String() string {
	switch k {
	case CauseRoot:
		return "root"
	case CauseDependency:
		return "dependency"
	case CauseNoVersions:
		return "no versions"
	case CauseUnknownSource:
		return "unknown source"
	case CausePackageNotFound:
		return "package not found"
	case CauseConflict:
		return "conflict"
	default:
		return fmt.Sprintf("CauseKind(%d)", int(k))
	}
}

// Cause is the reason an incompatibility exists.
type Cause struct {
	Kind CauseKind

	// Conflict and Other are the incompatibilities a CauseConflict was derived from
	Conflict *Incompatibility
	Other    *Incompatibility

	// Err is the source error behind a CausePackageNotFound
	Err error
}

// Incompatibility is a set of terms that must not all be true at once.
type Incompatibility struct {
	Terms []Term
	Cause Cause
}

// NewIncompatibility creates an incompatibility. Terms about the same
// package are merged, positive terms win over negative ones for packages
// sharing a name, and a derived incompatibility drops the positive root
// term since the root is always selected.
//
// It panics if two terms for the same package cannot be merged into one.
func NewIncompatibility(terms []Term, cause Cause) *Incompatibility {
	inc, err := newIncompatibility(terms, cause)
	if err != nil {
		panic(err)
	}
	return inc
}

func newIncompatibility(terms []Term, cause Cause) (*Incompatibility, error) {
	if len(terms) != 1 && cause.Kind == CauseConflict && slices.ContainsFunc(terms, isPositiveRoot) {
		terms = slices.DeleteFunc(slices.Clone(terms), isPositiveRoot)
	}

	if len(terms) == 1 || (len(terms) == 2 && terms[0].Package.Name != terms[1].Package.Name) {
		return &Incompatibility{Terms: terms, Cause: cause}, nil
	}

	type byRef struct {
		keys  []core.PackageKey
		terms map[core.PackageKey]Term
	}
	var names []string
	byName := map[string]*byRef{}

	for _, term := range terms {
		refs, ok := byName[term.Package.Name]
		if !ok {
			refs = &byRef{terms: map[core.PackageKey]Term{}}
			byName[term.Package.Name] = refs
			names = append(names, term.Package.Name)
		}

		key := term.Package.PackageRef.Key()
		existing, ok := refs.terms[key]
		if !ok {
			refs.keys = append(refs.keys, key)
			refs.terms[key] = term
			continue
		}
		merged, ok := existing.Intersect(term)
		if !ok {
			return nil, fmt.Errorf("internal solver error: cannot merge %s and %s", existing, term)
		}
		refs.terms[key] = merged
	}

	merged := make([]Term, 0, len(terms))
	for _, name := range names {
		refs := byName[name]
		var positive, all []Term
		for _, key := range refs.keys {
			term := refs.terms[key]
			all = append(all, term)
			if term.Positive {
				positive = append(positive, term)
			}
		}
		if len(positive) > 0 {
			merged = append(merged, positive...)
		} else {
			merged = append(merged, all...)
		}
	}

	return &Incompatibility{Terms: merged, Cause: cause}, nil
}

func isPositiveRoot(t Term) bool {
	return t.Positive && t.Package.IsRoot()
}

// IsFailure returns true if the incompatibility means the whole solve
// failed: it has no terms, or only a term for the root package.
func (inc *Incompatibility) IsFailure() bool {
	return len(inc.Terms) == 0 || (len(inc.Terms) == 1 && inc.Terms[0].Package.IsRoot())
}

// String renders the incompatibility as prose, e.g. "a 1.0.0 depends on b ^2.0.0".
func (inc *Incompatibility) String() string {
	switch inc.Cause.Kind {
	case CauseDependency:
		depender, dependee := inc.Terms[0], inc.Terms[len(inc.Terms)-1]
		return fmt.Sprintf("%s depends on %s", terse(depender, true), terse(dependee, false))
	case CauseNoVersions:
		term := inc.Terms[0]
		return fmt.Sprintf("no versions of %s match %s", term.Package.Name, terseConstraint(term))
	case CausePackageNotFound:
		return fmt.Sprintf("%s doesn't exist (%s)", inc.Terms[0].Package.Name, notFoundMessage(inc.Cause.Err))
	case CauseUnknownSource:
		term := inc.Terms[0]
		return fmt.Sprintf("%s comes from unknown source %q", term.Package.Name, term.Package.SourceName())
	case CauseRoot:
		term := inc.Terms[0]
		return fmt.Sprintf("%s is %s", term.Package.Name, term.Constraint())
	}

	if inc.IsFailure() {
		return "version solving failed"
	}

	if len(inc.Terms) == 1 {
		term := inc.Terms[0]
		verb := "required"
		if term.Positive {
			verb = "forbidden"
		}
		return fmt.Sprintf("%s is %s", terse(term, false), verb)
	}

	if len(inc.Terms) == 2 {
		first, second := inc.Terms[0], inc.Terms[1]
		if first.Positive && second.Positive {
			return fmt.Sprintf("%s is incompatible with %s", terse(first, false), terse(second, false))
		}
		if !first.Positive && !second.Positive {
			return fmt.Sprintf("either %s or %s", terse(first, false), terse(second, false))
		}
	}

	var positive, negative []string
	for _, term := range inc.Terms {
		if term.Positive {
			positive = append(positive, terse(term, false))
		} else {
			negative = append(negative, terse(term, false))
		}
	}

	switch {
	case len(positive) > 0 && len(negative) > 0:
		if len(positive) == 1 {
			term, _ := inc.singleTerm(true)
			return fmt.Sprintf("%s requires %s", terse(term, true), strings.Join(negative, " or "))
		}
		return fmt.Sprintf("if %s then %s", strings.Join(positive, " and "), strings.Join(negative, " or "))
	case len(positive) > 0:
		return fmt.Sprintf("one of %s must be false", strings.Join(positive, " or "))
	default:
		return fmt.Sprintf("one of %s must be true", strings.Join(negative, " or "))
	}
}

// AndString renders inc and other as one sentence fragment explaining
// why both together lead to a conclusion. Non-zero line numbers refer to
// earlier numbered lines of an explanation.
func (inc *Incompatibility) AndString(other *Incompatibility, thisLine, otherLine int) string {
	if s, ok := inc.tryRequiresBoth(other, thisLine, otherLine); ok {
		return s
	}
	if s, ok := inc.tryRequiresThrough(other, thisLine, otherLine); ok {
		return s
	}
	if s, ok := inc.tryRequiresForbidden(other, thisLine, otherLine); ok {
		return s
	}

	var b strings.Builder
	b.WriteString(inc.String())
	writeLine(&b, thisLine)
	b.WriteString(" and ")
	b.WriteString(other.String())
	writeLine(&b, otherLine)
	return b.String()
}

// tryRequiresBoth handles two incompatibilities with the same single
// positive term: "a depends on both b ^1.0.0 and c ^2.0.0".
func (inc *Incompatibility) tryRequiresBoth(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.Terms) == 1 || len(other.Terms) == 1 {
		return "", false
	}

	thisPositive, ok := inc.singleTerm(true)
	if !ok {
		return "", false
	}
	otherPositive, ok := other.singleTerm(true)
	if !ok || !thisPositive.Package.Equal(otherPositive.Package) {
		return "", false
	}

	verb := "requires"
	if inc.Cause.Kind == CauseDependency && other.Cause.Kind == CauseDependency {
		verb = "depends on"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s both %s", terse(thisPositive, true), verb, joinTerms(inc.Terms, false, " or "))
	writeLine(&b, thisLine)
	b.WriteString(" and ")
	b.WriteString(joinTerms(other.Terms, false, " or "))
	writeLine(&b, otherLine)
	return b.String(), true
}

// tryRequiresThrough handles a chain where one incompatibility's negative
// term is what the other requires: "a depends on b which depends on c".
func (inc *Incompatibility) tryRequiresThrough(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.Terms) == 1 || len(other.Terms) == 1 {
		return "", false
	}

	thisNegative, thisHasNegative := inc.singleTerm(false)
	otherNegative, otherHasNegative := other.singleTerm(false)
	if !thisHasNegative && !otherHasNegative {
		return "", false
	}
	thisPositive, thisHasPositive := inc.singleTerm(true)
	otherPositive, otherHasPositive := other.singleTerm(true)

	var prior, latter *Incompatibility
	var priorNegative Term
	var priorLine, latterLine int
	switch {
	case thisHasNegative && otherHasPositive &&
		thisNegative.Package.Name == otherPositive.Package.Name && thisNegative.Inverse().Satisfies(otherPositive):
		prior, priorNegative, priorLine = inc, thisNegative, thisLine
		latter, latterLine = other, otherLine
	case otherHasNegative && thisHasPositive &&
		otherNegative.Package.Name == thisPositive.Package.Name && otherNegative.Inverse().Satisfies(thisPositive):
		prior, priorNegative, priorLine = other, otherNegative, otherLine
		latter, latterLine = inc, thisLine
	default:
		return "", false
	}

	var b strings.Builder
	if !writeRequirer(&b, prior) {
		return "", false
	}
	b.WriteString(terse(priorNegative, false))
	writeLine(&b, priorLine)
	b.WriteString(" which ")
	if latter.Cause.Kind == CauseDependency {
		b.WriteString("depends on ")
	} else {
		b.WriteString("requires ")
	}
	b.WriteString(joinTerms(latter.Terms, false, " or "))
	writeLine(&b, latterLine)
	return b.String(), true
}

// tryRequiresForbidden handles an incompatibility whose negative term is
// forbidden outright by a single-term one: "a depends on b ^2.0.0 which
// doesn't match any versions".
func (inc *Incompatibility) tryRequiresForbidden(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.Terms) != 1 && len(other.Terms) != 1 {
		return "", false
	}

	prior, latter := inc, other
	priorLine, latterLine := thisLine, otherLine
	if len(inc.Terms) == 1 {
		prior, latter = other, inc
		priorLine, latterLine = otherLine, thisLine
	}

	negative, ok := prior.singleTerm(false)
	if !ok || !negative.Inverse().Satisfies(latter.Terms[0]) {
		return "", false
	}

	var b strings.Builder
	if !writeRequirer(&b, prior) {
		return "", false
	}
	b.WriteString(terse(latter.Terms[0], false))
	writeLine(&b, priorLine)

	switch latter.Cause.Kind {
	case CauseUnknownSource:
		fmt.Fprintf(&b, " from unknown source %q", latter.Terms[0].Package.SourceName())
	case CauseNoVersions:
		b.WriteString(" which doesn't match any versions")
	case CausePackageNotFound:
		fmt.Fprintf(&b, " which doesn't exist (%s)", notFoundMessage(latter.Cause.Err))
	default:
		b.WriteString(" which is forbidden")
	}
	writeLine(&b, latterLine)
	return b.String(), true
}

// writeRequirer writes "a depends on " or "if a or b then " for the
// positive terms of inc. It returns false if inc has no positive term.
func writeRequirer(b *strings.Builder, inc *Incompatibility) bool {
	var positives []Term
	for _, term := range inc.Terms {
		if term.Positive {
			positives = append(positives, term)
		}
	}

	switch {
	case len(positives) == 0:
		return false
	case len(positives) > 1:
		fmt.Fprintf(b, "if %s then ", joinTerms(positives, true, " or "))
	default:
		verb := "requires"
		if inc.Cause.Kind == CauseDependency {
			verb = "depends on"
		}
		fmt.Fprintf(b, "%s %s ", terse(positives[0], true), verb)
	}
	return true
}

// singleTerm returns the only term with the given sign.
func (inc *Incompatibility) singleTerm(positive bool) (Term, bool) {
	var found Term
	count := 0
	for _, term := range inc.Terms {
		if term.Positive != positive {
			continue
		}
		count++
		if count > 1 {
			return Term{}, false
		}
		found = term
	}
	return found, count == 1
}

// terse renders a term's package without its sign. With allowEvery, a term
// allowing any version reads "every version of a".
func terse(t Term, allowEvery bool) string {
	if allowEvery && !t.Package.IsRoot() && t.Constraint().IsAny() {
		return "every version of " + t.Package.Name
	}
	return t.Package.String()
}

func terseConstraint(t Term) string {
	c := t.Constraint()
	if c.IsAny() {
		return "any"
	}
	return version.Terse(c)
}

// joinTerms renders the terms with the given sign.
func joinTerms(terms []Term, positive bool, sep string) string {
	var parts []string
	for _, term := range terms {
		if term.Positive == positive {
			parts = append(parts, terse(term, false))
		}
	}
	return strings.Join(parts, sep)
}

func writeLine(b *strings.Builder, line int) {
	if line > 0 {
		fmt.Fprintf(b, " (%d)", line)
	}
}

func notFoundMessage(err error) string {
	if err == nil {
		return "not found"
	}
	return err.Error()
}
