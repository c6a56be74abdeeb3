package search

import (
	"github.com/rhartert/yagh"

	"github.com/lcgkit/solver/internal/kernel/store"
)

// LearningRateOrder is the second of spec §4.7's three named branchers: per
// variable it tracks conflicts_involving_var / conflicts_since_last_assigned
// and writes that ratio into the variable's activity at the moment it is
// unassigned by a backtrack, rather than bumping a fixed increment on every
// conflict the way VarOrder's VSIDS does. A variable that keeps showing up
// in conflicts shortly after being picked rises fast; one that sits
// assigned for a long quiet stretch before finally mattering again decays
// toward zero between picks. Built on the same yagh.IntMap heap and
// phase-saving fields as VarOrder (internal/kernel/search/brancher.go),
// generalizing the teacher's single activity-heap brancher to a second,
// genuinely different scoring rule rather than a retuned copy of the first.
type LearningRateOrder struct {
	order      *yagh.IntMap[float64]
	scores     []float64
	phases     []store.LBool
	registered []bool

	// assignedAt[v] is the conflict count observed the last time v was
	// either picked as a decision or first seen already assigned by
	// propagation; involved[v] counts conflicts charged to v since then.
	assignedAt []int
	involved   []int

	totalConflicts int
	phaseSaving    bool
}

// NewLearningRateOrder returns an empty brancher with the given phase-saving
// policy; variables must be registered with AddVar before NextDecision can
// pick them.
func NewLearningRateOrder(phaseSaving bool) *LearningRateOrder {
	return &LearningRateOrder{
		order:       yagh.New[float64](0),
		phaseSaving: phaseSaving,
	}
}

// AddVar registers v as a branching candidate with the given initial saved
// phase and zero starting activity; its ratio is undefined until it has
// been assigned and reinserted at least once.
func (o *LearningRateOrder) AddVar(v store.VarID, initPhase store.LBool) {
	for int(v) >= len(o.scores) {
		o.scores = append(o.scores, 0)
		o.phases = append(o.phases, store.Unknown)
		o.registered = append(o.registered, false)
		o.assignedAt = append(o.assignedAt, 0)
		o.involved = append(o.involved, 0)
		o.order.GrowBy(1)
	}
	o.phases[v] = initPhase
	o.registered[v] = true
	o.order.Put(int(v), 0)
}

func (o *LearningRateOrder) trackedAndInRange(v store.VarID) bool {
	return int(v) < len(o.registered) && o.registered[v]
}

// Bump credits v with one more conflict while it is assigned, mirroring the
// formula's numerator, conflicts_involving_var.
func (o *LearningRateOrder) Bump(v store.VarID) {
	if !o.trackedAndInRange(v) {
		return
	}
	o.involved[v]++
}

// Decay advances the global conflict clock the ratio's denominator is
// measured against; unlike VarOrder's Decay, it ages a counter rather than
// an activity increment.
func (o *LearningRateOrder) Decay() {
	o.totalConflicts++
}

// Reinsert computes v's learning-rate ratio over the conflicts elapsed
// since it was last assigned, writes it to the heap as v's new activity,
// saves val as its phase, and resets the counters for its next
// assignment window.
func (o *LearningRateOrder) Reinsert(v store.VarID, val store.LBool) {
	if !o.trackedAndInRange(v) {
		return
	}
	if since := o.totalConflicts - o.assignedAt[v]; since > 0 {
		o.scores[v] = float64(o.involved[v]) / float64(since)
	}
	o.involved[v] = 0
	if o.phaseSaving {
		o.phases[v] = val
	}
	o.order.Put(int(v), -o.scores[v])
}

// NextDecision pops the highest-ratio tracked variable that is not yet
// decided, starting its assignment window, and returns its phase-saved
// literal. Falls back to bisecting the widest in-scope integer variable
// once no tracked boolean candidate remains, the same as VarOrder.
func (o *LearningRateOrder) NextDecision(s *store.Store) (store.Literal, bool) {
	for {
		entry, ok := o.order.Pop()
		if !ok {
			break
		}
		v := store.VarID(entry.Elem)
		lb, ub := s.Bounds(v)
		if lb == ub {
			// Assigned by propagation rather than decision: start its
			// window here so a later Reinsert still measures a sensible
			// since-last-assigned span.
			o.assignedAt[v] = o.totalConflicts
			continue
		}
		o.assignedAt[v] = o.totalConflicts
		lit := store.PositiveLiteral(v)
		if o.phaseSaving && o.phases[v] == store.False {
			lit = store.NegativeLiteral(v)
		}
		return lit, true
	}
	return bisectWidest(s)
}
