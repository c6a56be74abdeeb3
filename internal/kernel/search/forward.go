package search

import "github.com/lcgkit/solver/internal/kernel/store"

// ForwardOrder is the third of spec §4.7's named branchers, "Forward
// (HTN)": rather than ranking by activity it always refines the
// undecided, in-scope variable with the smallest current lower bound,
// mimicking a forward state-space planner that always expands whichever
// pending subtask has the earliest possible start time. In this kernel a
// subtask's start time is just a KindInt store variable's lower bound
// (internal/kernel/stn nodes are store variables like any other), so the
// brancher tracks a caller-registered set of such timepoint variables
// instead of every boolean, and decides by asserting the chosen one's
// lower bound as an upper bound too (store.LELit(v, lb)), trying its
// earliest admissible value first rather than a fixed polarity.
//
// It has no activity signal to learn from: Bump and Decay are no-ops, and
// Reinsert only needs to make v eligible again, never a value to save,
// since the next pick is always driven by the live lower bound rather
// than a remembered phase.
type ForwardOrder struct {
	vars []store.VarID
}

// NewForwardOrder returns an empty brancher; timepoint variables must be
// registered with AddVar before NextDecision can pick them.
func NewForwardOrder() *ForwardOrder {
	return &ForwardOrder{}
}

// AddVar registers v as a timepoint the brancher may refine.
func (o *ForwardOrder) AddVar(v store.VarID) {
	o.vars = append(o.vars, v)
}

// Bump is a no-op: ForwardOrder's pick order depends only on live bounds,
// never on a learnt-clause activity signal.
func (o *ForwardOrder) Bump(store.VarID) {}

// Decay is a no-op for the same reason as Bump.
func (o *ForwardOrder) Decay() {}

// Reinsert is a no-op: a backtracked timepoint becomes eligible again
// purely by virtue of its domain widening back open, which NextDecision
// already checks on every call; there is no saved phase to restore.
func (o *ForwardOrder) Reinsert(store.VarID, store.LBool) {}

// NextDecision scans every registered, in-scope, undecided timepoint and
// refines the one with the smallest lower bound, trying that bound as its
// value first. Falls back to bisecting the widest in-scope variable if no
// registered timepoint remains undecided, the same fallback VarOrder uses.
func (o *ForwardOrder) NextDecision(s *store.Store) (store.Literal, bool) {
	best := store.VarID(-1)
	var bestLB int64
	for _, v := range o.vars {
		if !s.Entails(s.Presence(v)) {
			continue
		}
		lb, ub := s.Bounds(v)
		if lb == ub {
			continue
		}
		if best < 0 || lb < bestLB {
			best = v
			bestLB = lb
		}
	}
	if best < 0 {
		return bisectWidest(s)
	}
	return store.LELit(best, bestLB), true
}
