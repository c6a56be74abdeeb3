// Package reasoner defines the shared contract implemented by the SAT engine
// and every theory (spec §4.3). The search driver holds a slice of
// Reasoner values and runs them to a fixpoint on every propagation round;
// explanations route back to whichever reasoner wrote the cause via its
// WriterID (spec §9, "dynamic dispatch ... identity is an 8-bit tag").
package reasoner

import "github.com/lcgkit/solver/internal/kernel/store"

// Conflict is the explicit contradiction a reasoner can report from
// Propagate instead of (or in addition to) a domain wipe-out: a conjunction
// of entailed literals that cannot all hold together (spec §4.3, §7).
type Conflict struct {
	Literals []store.Literal
}

func (c *Conflict) Error() string {
	return "reasoner: conflicting explanation"
}

// Reasoner is the capability every propagation module (the SAT engine, the
// STN theory, the equality theory) implements.
type Reasoner interface {
	// Identity returns this reasoner's stable 8-bit id, embedded in every
	// Cause it writes so that explanations route back correctly.
	Identity() store.WriterID

	// Propagate runs the reasoner to a fixpoint against the current domain
	// store, returning a *Conflict if a contradiction was found that was not
	// already surfaced as a store.EmptyDomainError from within Propagate.
	Propagate(s *store.Store) (*Conflict, error)

	// Explain expands the inference (lit, payload) into the literals that
	// were entailed as of snap and together imply lit (spec §4.3).
	Explain(lit store.Literal, payload uint32, snap *store.Snapshot, exp *store.Explanation)

	// SaveState checkpoints the reasoner's own backtrackable state, aligned
	// with the trail's decision level, and returns the number of saved
	// states so far.
	SaveState() int

	// RestoreLast pops the most recent checkpoint saved by SaveState.
	RestoreLast()

	// NumSaved reports how many checkpoints are currently on the reasoner's
	// own backtrack stack; kept in lockstep, this equals the shared trail's
	// current decision level.
	NumSaved() int
}
