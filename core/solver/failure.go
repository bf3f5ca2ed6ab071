package solver

import (
	"errors"
	"fmt"
	"strings"
)

// SolveFailure is returned when no set of versions satisfies the root
// manifest. Its message explains why, step by step.
type SolveFailure struct {
	// Incompatibility is the derived incompatibility that proved failure
	Incompatibility *Incompatibility

	explanation string
}

func newSolveFailure(inc *Incompatibility) *SolveFailure {
	return &SolveFailure{
		Incompatibility: inc,
		explanation:     newExplainer(inc).write(),
	}
}

// Error implements error with the full explanation.
func (f *SolveFailure) Error() string {
	return f.explanation
}

// Explanation returns the human-readable derivation of the failure.
func (f *SolveFailure) Explanation() string {
	return f.explanation
}

// IsSolveFailure reports whether err is or wraps a *SolveFailure.
func IsSolveFailure(err error) bool {
	var f *SolveFailure
	return errors.As(err, &f)
}

type explanationLine struct {
	message string
	number  int
}

// explainer renders the derivation graph of a failure as numbered prose.
// An incompatibility derived more than once is written once with a line
// number and referred to by that number afterwards.
type explainer struct {
	root        *Incompatibility
	derivations map[*Incompatibility]int
	lines       []explanationLine
	lineNumbers map[*Incompatibility]int
	lastNumber  int
}

func newExplainer(root *Incompatibility) *explainer {
	e := &explainer{
		root:        root,
		derivations: map[*Incompatibility]int{},
		lineNumbers: map[*Incompatibility]int{},
	}
	e.countDerivations(root)
	return e
}

func (e *explainer) countDerivations(inc *Incompatibility) {
	if _, seen := e.derivations[inc]; seen {
		e.derivations[inc]++
		return
	}
	e.derivations[inc] = 1
	if inc.Cause.Kind == CauseConflict {
		e.countDerivations(inc.Cause.Conflict)
		e.countDerivations(inc.Cause.Other)
	}
}

func (e *explainer) write() string {
	if e.root.Cause.Kind == CauseConflict {
		e.visit(e.root, false)
	} else {
		e.add(e.root, fmt.Sprintf("Because %s, version solving failed.", e.root), false)
	}

	padding := 0
	if e.lastNumber > 0 {
		padding = len(fmt.Sprintf("(%d) ", e.lastNumber))
	}

	var out []string
	lastWasEmpty := false
	for _, line := range e.lines {
		if line.message == "" {
			if !lastWasEmpty {
				out = append(out, "")
			}
			lastWasEmpty = true
			continue
		}
		lastWasEmpty = false

		prefix := strings.Repeat(" ", padding)
		if line.number > 0 {
			prefix = fmt.Sprintf("%-*s", padding, fmt.Sprintf("(%d)", line.number))
		}
		out = append(out, prefix+line.message)
	}
	return strings.Join(out, "\n")
}

func (e *explainer) add(inc *Incompatibility, message string, numbered bool) {
	if !numbered {
		e.lines = append(e.lines, explanationLine{message: message})
		return
	}
	e.lastNumber++
	e.lineNumbers[inc] = e.lastNumber
	e.lines = append(e.lines, explanationLine{message: message, number: e.lastNumber})
}

func (e *explainer) visit(inc *Incompatibility, conclusion bool) {
	numbered := conclusion || e.derivations[inc] > 1
	conjunction := "And"
	if conclusion || inc == e.root {
		conjunction = "So,"
	}
	text := inc.String()

	conflict, other := inc.Cause.Conflict, inc.Cause.Other
	conflictDerived := conflict.Cause.Kind == CauseConflict
	otherDerived := other.Cause.Kind == CauseConflict

	switch {
	case conflictDerived && otherDerived:
		conflictLine, conflictNumbered := e.lineNumbers[conflict]
		otherLine, otherNumbered := e.lineNumbers[other]

		switch {
		case conflictNumbered && otherNumbered:
			e.add(inc, fmt.Sprintf("Because %s, %s.", conflict.AndString(other, conflictLine, otherLine), text), numbered)

		case conflictNumbered || otherNumbered:
			withLine, withoutLine, line := conflict, other, conflictLine
			if !conflictNumbered {
				withLine, withoutLine, line = other, conflict, otherLine
			}
			e.visit(withoutLine, false)
			e.add(inc, fmt.Sprintf("%s because %s (%d), %s.", conjunction, withLine, line, text), numbered)

		default:
			singleLineConflict := isSingleLine(conflict)
			singleLineOther := isSingleLine(other)
			if singleLineOther || singleLineConflict {
				first, second := other, conflict
				if singleLineOther {
					first, second = conflict, other
				}
				e.visit(first, false)
				e.visit(second, false)
				e.add(inc, fmt.Sprintf("Thus, %s.", text), numbered)
			} else {
				e.visit(conflict, true)
				e.lines = append(e.lines, explanationLine{})
				e.visit(other, false)
				e.add(inc, fmt.Sprintf("%s because %s (%d), %s.", conjunction, conflict, e.lineNumbers[conflict], text), numbered)
			}
		}

	case conflictDerived || otherDerived:
		derived, external := conflict, other
		if !conflictDerived {
			derived, external = other, conflict
		}

		if derivedLine, ok := e.lineNumbers[derived]; ok {
			e.add(inc, fmt.Sprintf("Because %s, %s.", external.AndString(derived, 0, derivedLine), text), numbered)
		} else if e.isCollapsible(derived) {
			inner := derived.Cause
			collapsedDerived, collapsedExternal := inner.Conflict, inner.Other
			if inner.Conflict.Cause.Kind != CauseConflict {
				collapsedDerived, collapsedExternal = inner.Other, inner.Conflict
			}
			e.visit(collapsedDerived, false)
			e.add(inc, fmt.Sprintf("%s because %s, %s.", conjunction, collapsedExternal.AndString(external, 0, 0), text), numbered)
		} else {
			e.visit(derived, false)
			e.add(inc, fmt.Sprintf("%s because %s, %s.", conjunction, external, text), numbered)
		}

	default:
		e.add(inc, fmt.Sprintf("Because %s, %s.", conflict.AndString(other, 0, 0), text), numbered)
	}
}

// isCollapsible reports whether derived can be folded into the line that
// uses it: it is used once, exactly one of its causes is derived, and that
// cause has no line number yet.
func (e *explainer) isCollapsible(derived *Incompatibility) bool {
	if e.derivations[derived] > 1 {
		return false
	}
	conflict, other := derived.Cause.Conflict, derived.Cause.Other
	conflictDerived := conflict.Cause.Kind == CauseConflict
	otherDerived := other.Cause.Kind == CauseConflict
	if conflictDerived == otherDerived {
		return false
	}
	inner := conflict
	if otherDerived {
		inner = other
	}
	_, numbered := e.lineNumbers[inner]
	return !numbered
}

func isSingleLine(inc *Incompatibility) bool {
	return inc.Cause.Conflict.Cause.Kind != CauseConflict && inc.Cause.Other.Cause.Kind != CauseConflict
}
