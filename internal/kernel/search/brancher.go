package search

import (
	"github.com/rhartert/yagh"

	"github.com/lcgkit/solver/internal/kernel/store"
)

// Brancher picks the next literal to branch on and adapts to the search's own
// activity signal (spec §4.7).
type Brancher interface {
	NextDecision(s *store.Store) (store.Literal, bool)
	Bump(v store.VarID)
	Decay()
	// Reinsert returns v to the set of branching candidates after a
	// backtrack unassigns it, where val is the value v held right before
	// being unassigned, mirroring the teacher's own
	// Reinsert(v int, val LBool) (internal/sat/ordering.go:49-52).
	Reinsert(v store.VarID, val store.LBool)
}

// VarOrder is a VSIDS-style brancher over boolean decision variables, built
// on the same activity-heap idea as the teacher's internal/sat/ordering.go
// VarOrder (github.com/rhartert/yagh's IntMap binary heap), generalized to
// bisect a plain integer variable once no tracked boolean remains undecided
// (spec §4.7, "branch on a half when no boolean candidate is left").
type VarOrder struct {
	order      *yagh.IntMap[float64]
	scores     []float64
	phases     []store.LBool
	registered []bool
	scoreInc   float64
	scoreDecay float64
	phaseSaving bool
}

// NewVarOrder returns a brancher with the given score decay (applied once per
// conflict, mirroring the teacher's VariableDecay option) and phase-saving
// policy.
func NewVarOrder(decay float64, phaseSaving bool) *VarOrder {
	return &VarOrder{
		order:       yagh.New[float64](0),
		scoreInc:    1,
		scoreDecay:  decay,
		phaseSaving: phaseSaving,
	}
}

// AddVar registers v as a boolean branching candidate with the given initial
// activity and saved phase. Non-boolean variables are never registered here:
// NextDecision falls back to bisecting them once the heap is drained.
func (o *VarOrder) AddVar(v store.VarID, initScore float64, initPhase store.LBool) {
	for int(v) >= len(o.scores) {
		o.scores = append(o.scores, 0)
		o.phases = append(o.phases, store.Unknown)
		o.registered = append(o.registered, false)
		o.order.GrowBy(1)
	}
	o.scores[v] = initScore
	o.phases[v] = initPhase
	o.registered[v] = true
	o.order.Put(int(v), -initScore)
}

func (o *VarOrder) trackedAndInRange(v store.VarID) bool {
	return int(v) < len(o.registered) && o.registered[v]
}

// Bump rewards v for appearing in a just-learnt clause (spec §4.7, "bump by
// an increment, rescale at 1e100" mirroring BumpClaActivity's own threshold).
func (o *VarOrder) Bump(v store.VarID) {
	if !o.trackedAndInRange(v) {
		return
	}
	o.scores[v] += o.scoreInc
	if o.order.Contains(int(v)) {
		o.order.Put(int(v), -o.scores[v])
	}
	if o.scores[v] > 1e100 {
		o.rescale()
	}
}

func (o *VarOrder) rescale() {
	for i := range o.scores {
		o.scores[i] *= 1e-100
	}
	o.scoreInc *= 1e-100
}

// Decay ages the activity increment once per conflict.
func (o *VarOrder) Decay() {
	o.scoreInc /= o.scoreDecay
	if o.scoreInc > 1e100 {
		o.rescale()
	}
}

// Reinsert returns v to the heap after a backtrack widened its domain back to
// undecided, saving val as v's phase for the next time it is picked
// (mirroring the teacher's Reinsert(v, val): "if vo.phaseSaving { vo.phases[v]
// = val }"), called from the teacher's undoOne.
func (o *VarOrder) Reinsert(v store.VarID, val store.LBool) {
	if !o.trackedAndInRange(v) {
		return
	}
	if o.phaseSaving {
		o.phases[v] = val
	}
	o.order.Put(int(v), -o.scores[v])
}

// NextDecision pops the highest-activity tracked variable that is not yet
// decided and returns its phase-saved literal, positive by default. If every
// tracked boolean is decided it bisects the widest-domain in-scope integer
// variable instead.
func (o *VarOrder) NextDecision(s *store.Store) (store.Literal, bool) {
	for {
		entry, ok := o.order.Pop()
		if !ok {
			break
		}
		v := store.VarID(entry.Elem)
		lb, ub := s.Bounds(v)
		if lb == ub {
			// Already decided: dropped from the heap for good until a
			// backtrack past this point calls Reinsert.
			continue
		}
		lit := store.PositiveLiteral(v)
		if o.phaseSaving && o.phases[v] == store.False {
			lit = store.NegativeLiteral(v)
		}
		return lit, true
	}
	return bisectWidest(s)
}

// bisectWidest scans every in-scope, still-undecided variable and branches by
// halving the domain of the widest one (spec §4.7). It is the fallback used
// once no tracked boolean candidate remains, for plain integer variables that
// never go through the activity heap.
func bisectWidest(s *store.Store) (store.Literal, bool) {
	best := store.VarID(-1)
	var bestWidth int64 = -1
	for v := store.VarID(0); int(v) < s.NumVariables(); v++ {
		if !s.Entails(s.Presence(v)) {
			continue
		}
		lb, ub := s.Bounds(v)
		if lb == ub {
			continue
		}
		if width := ub - lb; width > bestWidth {
			bestWidth = width
			best = v
		}
	}
	if best < 0 {
		return store.Literal{}, false
	}
	lb, ub := s.Bounds(best)
	mid := lb + (ub-lb)/2
	return store.LELit(best, mid), true
}
