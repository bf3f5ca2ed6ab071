package solver

import (
	"github.com/adambraimbridge/origami-build-service-v3/core"
)

// assignment is one entry of the partial solution: either a decision to
// select a package version or a term derived from an incompatibility.
type assignment struct {
	Term

	// decisionLevel is the number of decisions at or before this assignment
	decisionLevel int

	// index is the assignment's position in the partial solution
	index int

	// cause is the incompatibility a derivation was derived from; nil for decisions
	cause *Incompatibility
}

func newDecision(id core.PackageID, decisionLevel, index int) assignment {
	return assignment{
		Term:          NewTerm(id.ToRange(), true),
		decisionLevel: decisionLevel,
		index:         index,
	}
}

func newDerivation(pkg core.PackageRange, positive bool, cause *Incompatibility, decisionLevel, index int) assignment {
	return assignment{
		Term:          NewTerm(pkg, positive),
		decisionLevel: decisionLevel,
		index:         index,
		cause:         cause,
	}
}

func (a assignment) isDecision() bool {
	return a.cause == nil
}
