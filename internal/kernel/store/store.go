package store

import (
	"sort"

	"github.com/lcgkit/solver/internal/kernel/trail"
)

// Event is a single trail entry: a literal tightening together with the
// bound it superseded and the cause that produced it (spec §3.1).
type Event struct {
	Lit  Literal
	Prev int64 // the bound in the literal's direction before this event
	Cause Cause
}

// varDomain is the mutable per-variable state.
type varDomain struct {
	lb, ub int64
	// leHistory/geHistory record, in trail order, the index of every event
	// that tightened ub/lb respectively. Bounds only ever move in one
	// direction between saves (monotone tightening, spec §3.2), so each
	// history is monotonic and can be binary-searched to find when a given
	// literal first became entailed.
	leHistory []int // indices into the trail, ub non-increasing across them
	geHistory []int // indices into the trail, lb non-decreasing across them
}

// Store is the authoritative, backtrackable state for every variable (spec
// §4.2). All mutation goes through Set, and every mutation is reflected on
// the shared Trail so that the search driver can checkpoint/roll back the
// whole kernel in lockstep (spec §9).
type Store struct {
	vars    []Variable
	domains []varDomain

	trail *trail.Trail[Event]

	// implications records l1 => l2 edges declared at root level
	// (AddImplication), queried in O(1) by Implies.
	implications map[Literal][]Literal

	// exclusive records declared mutual-exclusion pairs (at most one of the
	// two literals can be entailed at once), used by Exclusive.
	exclusive map[Literal]map[Literal]struct{}

	// watches[lit] lists the reasoners that asked to be told when lit
	// becomes entailed (spec §4.2, "per-literal watch lists for external
	// subscribers"). It is filled by Watch and read back by Watchers; the
	// store itself notifies no one. The reasoners in this module (SAT, STN,
	// Eq) do not register here and instead drain the trail directly via a
	// Cursor.
	watches map[literalKey][]WriterID

	trueVar    VarID
	trueVarSet bool
}

type literalKey struct {
	v   VarID
	rel Rel
}

// New returns an empty store backed by the given trail (typically shared
// with the SAT engine and every theory through the search driver).
func New(t *trail.Trail[Event]) *Store {
	return &Store{
		trail:        t,
		implications: make(map[Literal][]Literal),
		exclusive:    make(map[Literal]map[Literal]struct{}),
		watches:      make(map[literalKey][]WriterID),
	}
}

// NewVariable creates and returns a fresh variable with the given kind,
// initial bounds and human label. The presence literal defaults to the
// always-true literal of a synthetic "true" variable created once, unless
// overridden with NewOptionalVariable.
func (s *Store) NewVariable(kind Kind, lb, ub int64, label string) VarID {
	return s.newVariable(kind, lb, ub, label, Literal{})
}

// NewOptionalVariable creates a variable whose presence is governed by the
// given literal (spec §3.1, "presence literal"; §9, "optional variables").
func (s *Store) NewOptionalVariable(kind Kind, lb, ub int64, label string, presence Literal) VarID {
	return s.newVariable(kind, lb, ub, label, presence)
}

func (s *Store) newVariable(kind Kind, lb, ub int64, label string, presence Literal) VarID {
	if presence == (Literal{}) {
		presence = s.alwaysTrue()
	}
	id := VarID(len(s.vars))
	s.vars = append(s.vars, Variable{ID: id, Kind: kind, Label: label, Presence: presence})
	s.domains = append(s.domains, varDomain{lb: lb, ub: ub})
	return id
}

// alwaysTrue lazily creates a dedicated boolean variable fixed to true at
// root level and returns its positive literal, used as the default presence
// literal for non-optional variables.
func (s *Store) alwaysTrue() Literal {
	if !s.trueVarSet {
		id := VarID(len(s.vars))
		s.vars = append(s.vars, Variable{ID: id, Kind: KindBool, Label: "$true", Presence: PositiveLiteral(id)})
		s.domains = append(s.domains, varDomain{lb: 1, ub: 1})
		s.trueVar = id
		s.trueVarSet = true
	}
	return PositiveLiteral(s.trueVar)
}

// NumVariables returns the number of variables created so far, including the
// synthetic always-true variable if one was allocated.
func (s *Store) NumVariables() int { return len(s.vars) }

// Variable returns the static metadata for v.
func (s *Store) Variable(v VarID) Variable { return s.vars[v] }

// Bounds returns the current [lb, ub] domain of v.
func (s *Store) Bounds(v VarID) (lb, ub int64) {
	d := &s.domains[v]
	return d.lb, d.ub
}

// Presence returns v's presence literal.
func (s *Store) Presence(v VarID) Literal { return s.vars[v].Presence }

// AlwaysTrue returns the literal of a synthetic boolean variable fixed to
// true at root level, lazily allocated on first use. It is the default
// presence literal for non-optional variables and a convenient
// "unconditionally in scope" literal for reasoners outside the store that
// need one, e.g. the equality theory's constant nodes (spec §3.1).
func (s *Store) AlwaysTrue() Literal { return s.alwaysTrue() }

// Value reports the truth value of lit: True if entailed, False if its
// negation is entailed, Unknown otherwise.
func (s *Store) Value(lit Literal) LBool {
	if s.Entails(lit) {
		return True
	}
	if s.Entails(lit.Negate()) {
		return False
	}
	return Unknown
}

// Entails reports whether lit currently holds given the variable's bounds.
// Only the bounds are checked: implications declared with AddImplication are
// not consulted, so a literal implied by an entailed literal is reported as
// entailed only once its own bound has been set.
func (s *Store) Entails(lit Literal) bool {
	d := &s.domains[lit.Var]
	switch lit.Rel {
	case LE:
		if d.ub <= lit.Bound {
			return true
		}
	case GE:
		if d.lb >= lit.Bound {
			return true
		}
	}
	for _, implied := range s.transitiveEntailedBy(lit) {
		_ = implied
	}
	return false
}

// transitiveEntailedBy is a placeholder hook kept intentionally empty: the
// implication graph is consulted the other way around, from Implies, not
// from Entails, to avoid a full graph search on every Entails call (which is
// on the hot path of propagation). See Implies.
func (s *Store) transitiveEntailedBy(Literal) []Literal { return nil }

// Implies reports whether l1 => l2 can be determined in O(1): either by
// bound arithmetic over the same variable/direction, or because l1 => l2 was
// declared with AddImplication at root level.
func (s *Store) Implies(l1, l2 Literal) bool {
	if l1.Implies(l2) {
		return true
	}
	for _, l := range s.implications[l1] {
		if l == l2 {
			return true
		}
	}
	return false
}

// AddImplication records l1 => l2 cheaply at root level (spec §4.2). It must
// only be called at decision level 0.
func (s *Store) AddImplication(l1, l2 Literal) {
	s.implications[l1] = append(s.implications[l1], l2)
	// The contrapositive holds for free: !l2 => !l1.
	n1, n2 := l1.Negate(), l2.Negate()
	s.implications[n2] = append(s.implications[n2], n1)
}

// AddExclusive declares that l1 and l2 cannot both be entailed at once.
func (s *Store) AddExclusive(l1, l2 Literal) {
	if s.exclusive[l1] == nil {
		s.exclusive[l1] = make(map[Literal]struct{})
	}
	if s.exclusive[l2] == nil {
		s.exclusive[l2] = make(map[Literal]struct{})
	}
	s.exclusive[l1][l2] = struct{}{}
	s.exclusive[l2][l1] = struct{}{}
}

// Exclusive reports whether l1 and l2 were declared mutually exclusive.
func (s *Store) Exclusive(l1, l2 Literal) bool {
	_, ok := s.exclusive[l1][l2]
	return ok
}

// Watch records writer against lit's direction, for later lookup with
// Watchers. Recording a watch does not by itself cause any notification.
func (s *Store) Watch(lit Literal, writer WriterID) {
	k := literalKey{lit.Var, lit.Rel}
	s.watches[k] = append(s.watches[k], writer)
}

// Watchers returns the writers registered against lit's direction.
func (s *Store) Watchers(lit Literal) []WriterID {
	return s.watches[literalKey{lit.Var, lit.Rel}]
}

// Set tightens lit's bound. It returns changed=true if the domain actually
// shrank, changed=false if lit was already entailed, and an error if the
// tightening empties the domain (spec §4.2: "domain wipe-out").
func (s *Store) Set(lit Literal, cause Cause) (changed bool, err error) {
	d := &s.domains[lit.Var]
	switch lit.Rel {
	case LE:
		if d.ub <= lit.Bound {
			return false, nil
		}
		prev := d.ub
		newUB := lit.Bound
		if newUB < d.lb {
			return false, &EmptyDomainError{Lit: lit, PriorLB: d.lb, PriorUB: prev}
		}
		d.ub = newUB
		idx := s.trail.Len()
		s.trail.Push(Event{Lit: Literal{Var: lit.Var, Rel: LE, Bound: newUB}, Prev: prev, Cause: cause})
		d.leHistory = append(d.leHistory, idx)
		return true, nil
	default: // GE
		if d.lb >= lit.Bound {
			return false, nil
		}
		prev := d.lb
		newLB := lit.Bound
		if newLB > d.ub {
			return false, &EmptyDomainError{Lit: lit, PriorLB: prev, PriorUB: d.ub}
		}
		d.lb = newLB
		idx := s.trail.Len()
		s.trail.Push(Event{Lit: Literal{Var: lit.Var, Rel: GE, Bound: newLB}, Prev: prev, Cause: cause})
		d.geHistory = append(d.geHistory, idx)
		return true, nil
	}
}

// Undo reverts a single event produced by Set. It is the callback the
// search driver passes to Trail.Restore.
func (s *Store) Undo(e Event) {
	d := &s.domains[e.Lit.Var]
	switch e.Lit.Rel {
	case LE:
		d.ub = e.Prev
		d.leHistory = d.leHistory[:len(d.leHistory)-1]
	default:
		d.lb = e.Prev
		d.geHistory = d.geHistory[:len(d.geHistory)-1]
	}
}

// EventLevel returns the decision level at which lit first became entailed,
// found by binary-searching the monotonic per-variable event history (spec
// §4.1, trail/level alignment). A literal entailed by a variable's initial
// bounds alone, with no tightening event ever recorded, is treated as having
// become entailed at the root (level 0). It panics if lit is not currently
// entailed at all.
func (s *Store) EventLevel(lit Literal) trail.Level {
	idx, ok := s.eventThatEntails(lit)
	if !ok {
		if !s.Entails(lit) {
			panic("store: EventLevel called on a non-entailed literal")
		}
		return 0
	}
	return s.trail.LevelOf(idx)
}

// eventThatEntails returns the earliest trail index whose event already
// implies lit, i.e. the index at which lit became (and, by monotonicity,
// remains) entailed.
func (s *Store) eventThatEntails(lit Literal) (int, bool) {
	d := &s.domains[lit.Var]
	switch lit.Rel {
	case LE:
		hist := d.leHistory
		// ub is non-increasing across hist; find first entry <= lit.Bound.
		i := sort.Search(len(hist), func(i int) bool {
			return s.trail.At(hist[i]).Lit.Bound <= lit.Bound
		})
		if i == len(hist) {
			return 0, false
		}
		return hist[i], true
	default:
		hist := d.geHistory
		// lb is non-decreasing across hist; find first entry >= lit.Bound.
		i := sort.Search(len(hist), func(i int) bool {
			return s.trail.At(hist[i]).Lit.Bound >= lit.Bound
		})
		if i == len(hist) {
			return 0, false
		}
		return hist[i], true
	}
}

// Trail exposes the shared trail for reasoners that drain it directly via a
// trail.Cursor instead of relying on the Watch/Watchers subscriber list
// (e.g. the SAT engine, which treats the trail as its propagation queue).
func (s *Store) Trail() *trail.Trail[Event] { return s.trail }

// CauseOf returns the cause of the event that currently makes lit entailed,
// or ok=false if lit is not entailed. Used by the SAT engine's clause-lock
// check (spec §4.4: "clauses currently used as the reason for an entailed
// literal are unremovable") without requiring a separate lock trail.
func (s *Store) CauseOf(lit Literal) (Cause, bool) {
	idx, ok := s.eventThatEntails(lit)
	if !ok {
		return Cause{}, false
	}
	return s.trail.At(idx).Cause, true
}

// Snapshot returns a read-only view of the store as of just before the event
// at trailIndex (spec §4.3, §9 "explanation via snapshots").
func (s *Store) Snapshot(trailIndex int) *Snapshot {
	return &Snapshot{store: s, at: trailIndex}
}

// ImplyingLiterals asks the writer reasoner identified in cause to expand it
// into the literals whose conjunction implies lit (spec §4.2,
// "implying_literals"). explainer is the dispatcher built by the search
// driver (see internal/kernel/search).
func (s *Store) ImplyingLiterals(lit Literal, cause Cause, explainer Explainer) []Literal {
	if cause.Kind != CauseInference {
		return nil
	}
	idx, ok := s.eventThatEntails(lit)
	snap := s.Snapshot(idx)
	if !ok {
		snap = s.Snapshot(s.trail.Len())
	}
	exp := &Explanation{}
	explainer.Explain(lit, cause.Payload, snap, exp)
	return exp.Literals
}
