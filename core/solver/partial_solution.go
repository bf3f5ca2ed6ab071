package solver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/adambraimbridge/origami-build-service-v3/core"
)

// partialSolution is the solver's current set of decisions and derived
// terms.
//
// Assignments live in one arena in the order they were made. Backjumping
// to a decision level truncates the arena and rebuilds the per-package
// summaries of the packages it touched.
type partialSolution struct {
	assignments []assignment

	// decisions maps package names to the version selected for them
	decisions map[string]core.PackageID

	// positive is the intersection of all positive assignments per package
	// name, once there is at least one
	positive map[string]Term

	// negative is the union of negative assignments per package name and
	// ref, for packages that have no positive assignment
	negative map[string]map[core.PackageKey]Term

	// attemptedSolutions counts how many different solutions were tried
	attemptedSolutions int
	backtracking       bool
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		decisions:          map[string]core.PackageID{},
		positive:           map[string]Term{},
		negative:           map[string]map[core.PackageKey]Term{},
		attemptedSolutions: 1,
	}
}

// decisionLevel is the number of decisions made so far.
func (ps *partialSolution) decisionLevel() int {
	return len(ps.decisions)
}

// decisionList returns the selected versions sorted by package name.
func (ps *partialSolution) decisionList() []core.PackageID {
	ids := make([]core.PackageID, 0, len(ps.decisions))
	for _, id := range ps.decisions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b core.PackageID) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ids
}

// unsatisfied returns the packages that are required but have no selected
// version yet, sorted by name.
func (ps *partialSolution) unsatisfied() []core.PackageRange {
	var ranges []core.PackageRange
	for name, term := range ps.positive {
		if _, decided := ps.decisions[name]; !decided {
			ranges = append(ranges, term.Package)
		}
	}
	slices.SortFunc(ranges, func(a, b core.PackageRange) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ranges
}

// decide selects id, opening a new decision level.
func (ps *partialSolution) decide(id core.PackageID) {
	// A decision after a backjump is a new solution attempt.
	if ps.backtracking {
		ps.attemptedSolutions++
	}
	ps.backtracking = false
	ps.decisions[id.Name] = id
	ps.assign(newDecision(id, ps.decisionLevel(), len(ps.assignments)))
}

// derive records a term implied by cause at the current decision level.
func (ps *partialSolution) derive(pkg core.PackageRange, positive bool, cause *Incompatibility) {
	ps.assign(newDerivation(pkg, positive, cause, ps.decisionLevel(), len(ps.assignments)))
}

func (ps *partialSolution) assign(a assignment) {
	ps.assignments = append(ps.assignments, a)
	ps.register(a)
}

// backtrack removes every assignment made after decisionLevel.
func (ps *partialSolution) backtrack(decisionLevel int) {
	ps.backtracking = true

	cut := len(ps.assignments)
	for cut > 0 && ps.assignments[cut-1].decisionLevel > decisionLevel {
		cut--
	}

	touched := map[string]bool{}
	for _, removed := range ps.assignments[cut:] {
		touched[removed.Package.Name] = true
		if removed.isDecision() {
			delete(ps.decisions, removed.Package.Name)
		}
	}
	ps.assignments = ps.assignments[:cut]

	for name := range touched {
		delete(ps.positive, name)
		delete(ps.negative, name)
	}
	for _, a := range ps.assignments {
		if touched[a.Package.Name] {
			ps.register(a)
		}
	}
}

// register folds a into the per-package summaries.
func (ps *partialSolution) register(a assignment) {
	name := a.Package.Name
	if old, ok := ps.positive[name]; ok {
		if merged, ok := old.Intersect(a.Term); ok {
			ps.positive[name] = merged
		}
		return
	}

	key := a.Package.PackageRef.Key()
	term := a.Term
	if old, ok := ps.negative[name][key]; ok {
		if merged, ok := a.Term.Intersect(old); ok {
			term = merged
		}
	}

	if term.Positive {
		delete(ps.negative, name)
		ps.positive[name] = term
		return
	}
	if ps.negative[name] == nil {
		ps.negative[name] = map[core.PackageKey]Term{}
	}
	ps.negative[name][key] = term
}

// satisfier returns the earliest assignment after which the partial
// solution satisfies term.
func (ps *partialSolution) satisfier(term Term) (assignment, error) {
	var assigned Term
	haveAssigned := false

	for _, a := range ps.assignments {
		if a.Package.Name != term.Package.Name {
			continue
		}

		if !a.Package.IsRoot() && !a.Package.SamePackage(term.Package.PackageRef) {
			// not foo from hosted has no bearing on foo from git
			if !a.Positive {
				continue
			}
			// foo from hosted satisfies not foo from git
			return a, nil
		}

		if !haveAssigned {
			assigned, haveAssigned = a.Term, true
		} else if merged, ok := assigned.Intersect(a.Term); ok {
			assigned = merged
		}

		if assigned.Satisfies(term) {
			return a, nil
		}
	}

	return assignment{}, fmt.Errorf("internal solver error: %s is not satisfied", term)
}

// satisfies returns true if the partial solution satisfies term.
func (ps *partialSolution) satisfies(term Term) bool {
	return ps.relation(term) == Subset
}

// relation returns how the partial solution relates to term.
func (ps *partialSolution) relation(term Term) SetRelation {
	if positive, ok := ps.positive[term.Package.Name]; ok {
		return positive.Relation(term)
	}

	negative, ok := ps.negative[term.Package.Name][term.Package.PackageRef.Key()]
	if !ok {
		return Overlapping
	}
	return negative.Relation(term)
}
