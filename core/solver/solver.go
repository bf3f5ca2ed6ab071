// Package solver implements PubGrub version solving over core sources.
//
// The solver keeps a partial solution of decisions and derived terms and a
// growing set of incompatibilities. Unit propagation derives new terms,
// conflicts are resolved into new incompatibilities that backjump the
// partial solution, and when no solution exists the incompatibility that
// proves it is rendered as an explanation.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// State is the phase the solver is in.
type State int

const (
	// Propagating applies incompatibilities to derive new terms.
	Propagating State = iota

	// Deciding selects a version for a required package.
	Deciding

	// Backtracking resolves a conflict and backjumps.
	Backtracking

	// Succeeded means every required package has a version.
	Succeeded

	// Failed means no solution exists.
	Failed
)

func (s State) String() string {
	switch s {
	case Propagating:
		return "Propagating"
	case Deciding:
		return "Deciding"
	case Backtracking:
		return "Backtracking"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a VersionSolver
type Option func(*VersionSolver)

// WithLogger sets the solver's logger. Derivations and decisions are
// logged at debug level.
func WithLogger(logger observability.Logger) Option {
	return func(s *VersionSolver) {
		s.logger = logger
	}
}

// VersionSolver finds versions for every package a root manifest
// transitively depends on. A solver runs once; create a new one per solve.
type VersionSolver struct {
	cache  *core.SystemCache
	root   *core.Manifest
	logger observability.Logger

	rootID            core.PackageID
	incompatibilities map[string][]*Incompatibility
	solution          *partialSolution
	listers           map[core.PackageKey]*packageLister
	rootLister        *packageLister
	state             State
}

// NewVersionSolver creates a solver for root whose dependencies are looked
// up through cache.
func NewVersionSolver(cache *core.SystemCache, root *core.Manifest, opts ...Option) *VersionSolver {
	s := &VersionSolver{
		cache:             cache,
		root:              root,
		incompatibilities: map[string][]*Incompatibility{},
		solution:          newPartialSolution(),
		listers:           map[core.PackageKey]*packageLister{},
		state:             Propagating,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = cache.Logger()
	}
	s.logger = observability.OrNull(s.logger)
	return s
}

// State returns the solver's current state.
func (s *VersionSolver) State() State {
	return s.state
}

// Solve runs the solver. It returns a *SolveFailure if no solution exists,
// the root manifest's error if it is invalid, and ctx's error if ctx ends
// first.
func (s *VersionSolver) Solve(ctx context.Context) (result *SolveResult, err error) {
	start := time.Now()

	if err := s.root.Validate(); err != nil {
		return nil, err
	}
	name, _ := s.root.Name()
	rootVersion, _ := s.root.Version()
	deps, _ := s.root.Dependencies()

	s.rootID = core.NewRootRef(name).WithVersion(rootVersion)
	s.rootLister = newRootLister(s.rootID, s.root, s.logger)

	ctx, span := observability.StartSolveSpan(ctx, name, len(deps))
	defer func() {
		s.finish(span, start, result, err)
	}()

	s.logger.InfoContext(ctx, "Solving dependencies of {Package} ({Count} direct)", name, len(deps))

	s.addIncompatibility(ctx, NewIncompatibility(
		[]Term{NewTerm(s.rootID.ToRange(), false)},
		Cause{Kind: CauseRoot},
	))

	next := name
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.propagate(ctx, next); err != nil {
			return nil, err
		}
		if next, err = s.choosePackageVersion(ctx); err != nil {
			return nil, err
		}
	}

	result, err = s.result(ctx)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	s.setState(ctx, Succeeded)
	return result, nil
}

func (s *VersionSolver) finish(span trace.Span, start time.Time, result *SolveResult, err error) {
	outcome := "success"
	var failure *SolveFailure
	switch {
	case errors.As(err, &failure):
		outcome = "failure"
	case err != nil:
		outcome = "error"
	}

	observability.SolveTotal.WithLabelValues(outcome).Inc()
	observability.SolveDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		observability.AttrSolveOutcome.String(outcome),
		observability.AttrAttempts.Int(s.solution.attemptedSolutions),
	)

	if failure != nil {
		// A failed solve is an answer, not a fault of the operation.
		observability.EndSpanWithError(span, nil)
	} else {
		observability.EndSpanWithError(span, err)
	}

	if result != nil {
		s.logger.Info("Version solving took {Duration} seconds and tried {Attempts} solutions",
			result.Duration.Seconds(), result.AttemptedSolutions)
	}
}

func (s *VersionSolver) setState(ctx context.Context, next State) {
	if s.state == next {
		return
	}
	s.logger.DebugContext(ctx, "Solver state {From} -> {To}", s.state.String(), next.String())
	s.state = next
}

// propagate performs unit propagation starting from the incompatibilities
// that mention name.
func (s *VersionSolver) propagate(ctx context.Context, name string) error {
	s.setState(ctx, Propagating)
	changed := newOrderedSet(name)

	for changed.size() > 0 {
		pkg := changed.pop()

		// Newer incompatibilities are more general, so try them first.
		incompatibilities := s.incompatibilities[pkg]
	scan:
		for i := len(incompatibilities) - 1; i >= 0; i-- {
			inc := incompatibilities[i]
			outcome, derived := s.propagateIncompatibility(ctx, inc)

			switch outcome {
			case propagationConflict:
				rootCause, err := s.resolveConflict(ctx, inc)
				if err != nil {
					return err
				}
				s.setState(ctx, Propagating)

				// The learned incompatibility is almost satisfied at the
				// backjump level, so propagating it derives a term.
				changed.reset()
				if outcome, derived := s.propagateIncompatibility(ctx, rootCause); outcome == propagationDerived {
					changed.add(derived)
				}
				break scan
			case propagationDerived:
				changed.add(derived)
			}
		}
	}
	return nil
}

type propagation int

const (
	propagationNone propagation = iota
	propagationConflict
	propagationDerived
)

// propagateIncompatibility derives the inverse of inc's only unsatisfied
// term when every other term is satisfied. It returns the name of the
// package it derived a term for.
func (s *VersionSolver) propagateIncompatibility(ctx context.Context, inc *Incompatibility) (propagation, string) {
	var unsatisfied Term
	haveUnsatisfied := false

	for _, term := range inc.Terms {
		switch s.solution.relation(term) {
		case Disjoint:
			// The incompatibility cannot be satisfied.
			return propagationNone, ""
		case Overlapping:
			if haveUnsatisfied {
				return propagationNone, ""
			}
			unsatisfied, haveUnsatisfied = term, true
		}
	}

	if !haveUnsatisfied {
		return propagationConflict, ""
	}

	s.logger.DebugContext(ctx, "Derived {Term}", unsatisfied.Inverse().String())
	observability.SolveSteps.WithLabelValues("derivation").Inc()
	s.solution.derive(unsatisfied.Package, !unsatisfied.Positive, inc)
	return propagationDerived, unsatisfied.Package.Name
}

// resolveConflict learns a new incompatibility from inc, which the partial
// solution satisfies, and backjumps to where it is almost satisfied. It
// returns a *SolveFailure when the conflict cannot be undone.
func (s *VersionSolver) resolveConflict(ctx context.Context, inc *Incompatibility) (*Incompatibility, error) {
	s.setState(ctx, Backtracking)
	s.logger.DebugContext(ctx, "Conflict: {Incompatibility}", inc.String())
	observability.SolveSteps.WithLabelValues("conflict").Inc()

	learned := false
	for !inc.IsFailure() {
		// The term whose satisfier was assigned last.
		mostRecentTerm := -1
		var mostRecentSatisfier assignment

		// The difference between the satisfier and the term, if the
		// satisfier only partially satisfies it.
		var difference *Term

		// The decision level the partial solution must stay at for inc to
		// remain satisfied without the most recent satisfier.
		previousSatisfierLevel := 1

		for i, term := range inc.Terms {
			satisfier, err := s.solution.satisfier(term)
			if err != nil {
				return nil, err
			}

			switch {
			case mostRecentTerm < 0:
				mostRecentTerm, mostRecentSatisfier = i, satisfier
			case mostRecentSatisfier.index < satisfier.index:
				previousSatisfierLevel = max(previousSatisfierLevel, mostRecentSatisfier.decisionLevel)
				mostRecentTerm, mostRecentSatisfier = i, satisfier
				difference = nil
			default:
				previousSatisfierLevel = max(previousSatisfierLevel, satisfier.decisionLevel)
			}

			if mostRecentTerm == i {
				if d, ok := mostRecentSatisfier.Difference(term); ok {
					difference = &d
					prior, err := s.solution.satisfier(d.Inverse())
					if err != nil {
						return nil, err
					}
					previousSatisfierLevel = max(previousSatisfierLevel, prior.decisionLevel)
				}
			}
		}

		// If the satisfier is a decision, or inc would already have derived
		// the term at an earlier level, backjump there.
		if previousSatisfierLevel < mostRecentSatisfier.decisionLevel || mostRecentSatisfier.isDecision() {
			s.logger.DebugContext(ctx, "Backjumping to level {Level}", previousSatisfierLevel)
			observability.SolveSteps.WithLabelValues("backjump").Inc()
			s.solution.backtrack(previousSatisfierLevel)
			if learned {
				s.addIncompatibility(ctx, inc)
			}
			return inc, nil
		}

		// Otherwise combine inc with the cause of the satisfier: the result
		// is satisfied earlier in the partial solution.
		cause := mostRecentSatisfier.cause
		terms := make([]Term, 0, len(inc.Terms)+len(cause.Terms))
		for i, term := range inc.Terms {
			if i != mostRecentTerm {
				terms = append(terms, term)
			}
		}
		for _, term := range cause.Terms {
			if !term.Package.SamePackage(mostRecentSatisfier.Package.PackageRef) {
				terms = append(terms, term)
			}
		}
		if difference != nil {
			terms = append(terms, difference.Inverse())
		}

		derived, err := newIncompatibility(terms, Cause{Kind: CauseConflict, Conflict: inc, Other: cause})
		if err != nil {
			return nil, err
		}
		inc = derived
		learned = true
		s.logger.DebugContext(ctx, "Learned {Incompatibility}", inc.String())
	}

	s.setState(ctx, Failed)
	failure := newSolveFailure(inc)
	s.logger.InfoContext(ctx, "Version solving failed: {Explanation}", failure.Explanation())
	return nil, failure
}

// choosePackageVersion decides a version for one required package and adds
// its dependency incompatibilities. It returns the package's name, or ""
// once every required package has a version.
func (s *VersionSolver) choosePackageVersion(ctx context.Context) (string, error) {
	s.setState(ctx, Deciding)

	unsatisfied := s.solution.unsatisfied()
	if len(unsatisfied) == 0 {
		return "", nil
	}

	// A package from an unknown source can never be selected.
	for _, candidate := range unsatisfied {
		if candidate.IsRoot() {
			continue
		}
		if _, unknown := s.cache.Bound(candidate.Source).Source().(*core.UnknownSource); unknown {
			s.addIncompatibility(ctx, NewIncompatibility(
				[]Term{NewTerm(candidate.ToRef().WithConstraint(version.Any()), true)},
				Cause{Kind: CauseUnknownSource},
			))
			return candidate.Name, nil
		}
	}

	// Prefer the package with the fewest versions left so that a conflict,
	// if there is one, is found quickly.
	var pkg core.PackageRange
	fewest := -1
	for _, candidate := range unsatisfied {
		n, err := s.lister(candidate.PackageRef).countVersions(ctx, candidate.Constraint)
		if err != nil {
			return "", err
		}
		if fewest < 0 || n < fewest {
			pkg, fewest = candidate, n
		}
	}

	lister := s.lister(pkg.PackageRef)
	id, found, err := lister.bestVersion(ctx, pkg.Constraint)
	if err != nil {
		if isAbort(err) {
			return "", err
		}
		s.addIncompatibility(ctx, NewIncompatibility(
			[]Term{NewTerm(pkg.ToRef().WithConstraint(version.Any()), true)},
			Cause{Kind: CausePackageNotFound, Err: err},
		))
		return pkg.Name, nil
	}

	if !found {
		s.addIncompatibility(ctx, NewIncompatibility(
			[]Term{NewTerm(pkg, true)},
			Cause{Kind: CauseNoVersions},
		))
		return pkg.Name, nil
	}

	incompatibilities, err := lister.incompatibilitiesFor(ctx, id)
	if err != nil {
		return "", err
	}

	conflict := false
	for _, inc := range incompatibilities {
		s.addIncompatibility(ctx, inc)

		// If an incompatibility is already satisfied, selecting id would
		// cause a conflict. Propagation will steer towards another version.
		if !conflict {
			conflict = true
			for _, term := range inc.Terms {
				if term.Package.Name != pkg.Name && !s.solution.satisfies(term) {
					conflict = false
					break
				}
			}
		}
	}

	if !conflict {
		s.solution.decide(id)
		observability.SolveSteps.WithLabelValues("decision").Inc()
		s.logger.DebugContext(ctx, "Selecting {Package} {Version}", id.Name, id.Version.String())
	}
	return pkg.Name, nil
}

func (s *VersionSolver) addIncompatibility(ctx context.Context, inc *Incompatibility) {
	s.logger.DebugContext(ctx, "Fact: {Incompatibility}", inc.String())
	for _, term := range inc.Terms {
		s.incompatibilities[term.Package.Name] = append(s.incompatibilities[term.Package.Name], inc)
	}
}

func (s *VersionSolver) lister(ref core.PackageRef) *packageLister {
	if ref.IsRoot() {
		return s.rootLister
	}
	key := ref.Key()
	if l, ok := s.listers[key]; ok {
		return l
	}
	l := newPackageLister(ref, s.cache.Bound(ref.Source), s.logger)
	s.listers[key] = l
	return l
}

func (s *VersionSolver) result(ctx context.Context) (*SolveResult, error) {
	result := &SolveResult{
		Root:               s.rootID,
		AttemptedSolutions: s.solution.attemptedSolutions,
	}

	for _, id := range s.solution.decisionList() {
		m := s.root
		if !id.IsRoot() {
			var err error
			if m, err = s.cache.Bound(id.Source).Describe(ctx, id); err != nil {
				return nil, fmt.Errorf("describe selected %s: %w", id, err)
			}
			result.Packages = append(result.Packages, id)
		}

		deps, err := m.DependencyList()
		if err != nil {
			return nil, err
		}
		result.Dependencies = append(result.Dependencies, deps...)
	}
	return result, nil
}

// orderedSet is a FIFO of package names without duplicates.
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet(items ...string) *orderedSet {
	s := &orderedSet{seen: map[string]bool{}}
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s *orderedSet) add(item string) {
	if !s.seen[item] {
		s.seen[item] = true
		s.items = append(s.items, item)
	}
}

func (s *orderedSet) pop() string {
	item := s.items[0]
	s.items = s.items[1:]
	delete(s.seen, item)
	return item
}

func (s *orderedSet) reset() {
	s.items = nil
	clear(s.seen)
}

func (s *orderedSet) size() int {
	return len(s.items)
}
