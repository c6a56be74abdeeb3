// Package errs collects the kernel's externally-visible error taxonomy,
// grounded on the teacher's split between plain wrapped errors for
// recoverable conditions and log.Fatal for invariant violations
// (internal/sat/solver.go's Simplify). Recoverable outcomes here are typed
// so a caller can switch on them: internal/kernel/search.Driver.Solve
// constructs *Interrupted when opts.Interrupt fires,
// internal/kernel/problem.Problem.Optimize constructs *Unsatisfiable when
// tightening proves no solution exists at all, and
// internal/kernel/portfolio.Run treats a worker's *Interrupted as the
// expected outcome of losing the race rather than a supervisor failure.
// FromError classifies either into the Status enum below; any other non-nil
// error is classified as StatusInternalError.
package errs

import (
	"errors"
	"fmt"
)

// Unsatisfiable is returned when conflict analysis at the root level cannot
// find a backjump target: the problem, as currently constrained, admits no
// solution.
type Unsatisfiable struct {
	// Explanation holds the literals of the final root-level conflict, if
	// the caller wants to report why. May be empty for a problem found
	// inconsistent purely at instantiation time.
	Explanation []fmt.Stringer
}

func (e *Unsatisfiable) Error() string {
	if len(e.Explanation) == 0 {
		return "unsatisfiable"
	}
	return fmt.Sprintf("unsatisfiable: %d literals in final conflict", len(e.Explanation))
}

// Interrupted is returned when a cooperative termination request (a
// portfolio sibling finishing first, a caller-supplied context being
// cancelled) stops a search before it reached a definite verdict.
type Interrupted struct {
	Reason string
}

func (e *Interrupted) Error() string {
	if e.Reason == "" {
		return "interrupted"
	}
	return fmt.Sprintf("interrupted: %s", e.Reason)
}

// Status is the externally-visible outcome of a solving attempt, the shape
// a CLI or RPC boundary reports (spec §6's FinalReport.status, §7's
// user-visible failure modes), distinct from search.Status which is purely
// the kernel's internal SAT/UNSAT/UNKNOWN trichotomy.
type Status int

const (
	StatusUnknown Status = iota
	StatusSat
	StatusOpt
	StatusUnsat
	StatusSearchSpaceExhausted
	StatusTimeout
	StatusMemout
	StatusInternalError
	StatusUnsupportedProblem
)

func (s Status) String() string {
	switch s {
	case StatusSat:
		return "Sat"
	case StatusOpt:
		return "Opt"
	case StatusUnsat:
		return "Unsat"
	case StatusSearchSpaceExhausted:
		return "SearchSpaceExhausted"
	case StatusTimeout:
		return "Timeout"
	case StatusMemout:
		return "Memout"
	case StatusInternalError:
		return "InternalError"
	case StatusUnsupportedProblem:
		return "UnsupportedProblem"
	default:
		return "Unknown"
	}
}

// FromError classifies err into the reporting taxonomy of §7: Unsatisfiable
// and Interrupted map to their own status, anything else unrecognized is an
// InternalError since it indicates the kernel hit a condition it doesn't
// have a typed error for.
func FromError(err error) Status {
	if err == nil {
		return StatusSat
	}
	var unsat *Unsatisfiable
	var interrupted *Interrupted
	switch {
	case errors.As(err, &unsat):
		return StatusUnsat
	case errors.As(err, &interrupted):
		return StatusTimeout
	default:
		return StatusInternalError
	}
}
