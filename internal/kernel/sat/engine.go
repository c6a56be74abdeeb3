package sat

import (
	"fmt"
	"sort"

	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// watcher is a clause attached to the watch list of a literal: it is
// re-examined whenever that literal becomes entailed (spec §3.2, "watch
// invariant").
type watcher struct {
	clause *Clause
	guard  store.Literal // if entailed, the clause needs no re-examination
}

// Options configures the engine's clause-database management, mirroring the
// teacher's Options (internal/sat/solver.go).
type Options struct {
	ClauseDecay float64
}

var DefaultOptions = Options{ClauseDecay: 0.999}

// Engine is the SAT reasoner (spec §4.4).
type Engine struct {
	opts Options

	clauses     []*Clause // index == ClauseID; constraints + learnts, constraints never deleted
	numLearnts  int
	clauseInc   float64
	watches     map[store.Literal][]watcher
	tmpWatchers []watcher

	// pending holds forgettable clauses (learnt locally, or received from a
	// sibling worker in the portfolio) that have been added to the database
	// but not yet watched/propagated (spec §4.4 "pending-queue"; §5
	// "absorbed at the next propagation boundary").
	pending []*Clause

	cursor *trail.Cursor

	tmpReason []store.Literal

	savedLevels int
}

// New returns a SAT engine with default options.
func New() *Engine { return NewWithOptions(DefaultOptions) }

// NewWithOptions returns a SAT engine configured with the given options.
func NewWithOptions(opts Options) *Engine {
	return &Engine{
		opts:      opts,
		clauseInc: 1,
		watches:   make(map[store.Literal][]watcher),
		cursor:    trail.NewCursor(),
	}
}

var _ reasoner.Reasoner = (*Engine)(nil)

func (e *Engine) Identity() store.WriterID { return store.WriterSAT }

// NumConstraints reports the number of non-learnt (problem) clauses.
func (e *Engine) NumConstraints() int { return len(e.clauses) - e.numLearnts }

// NumLearnts reports the number of learnt/forgettable clauses currently held.
func (e *Engine) NumLearnts() int { return e.numLearnts }

func (e *Engine) watch(c *Clause, watched, guard store.Literal) {
	e.watches[watched] = append(e.watches[watched], watcher{clause: c, guard: guard})
}

func (e *Engine) unwatch(c *Clause, watched store.Literal) {
	lst := e.watches[watched]
	j := 0
	for i := range lst {
		if lst[i].clause != c {
			lst[j] = lst[i]
			j++
		}
	}
	e.watches[watched] = lst[:j]
}

// AddClause adds a problem clause at the root level. A tautological clause
// is silently dropped (spec §8, "adding a tautological clause is a no-op").
func (e *Engine) AddClause(s *store.Store, lits []store.Literal) (ClauseID, error) {
	if s.Trail().CurrentLevel() != 0 {
		return 0, fmt.Errorf("sat: AddClause called above root level")
	}
	return e.addClauseImpl(s, lits, false)
}

// AddForgettable adds a learnt or shared clause that the database is allowed
// to cull later. It may be called at any decision level; the clause is
// queued and only wired into the watch lists at the next Propagate call
// (spec §4.4, §5).
func (e *Engine) AddForgettable(s *store.Store, lits []store.Literal) ClauseID {
	id, _ := e.addClauseImpl(s, lits, true)
	return id
}

func (e *Engine) addClauseImpl(s *store.Store, tmpLits []store.Literal, learnt bool) (ClauseID, error) {
	lits, tautology := buildClause(s, tmpLits, learnt)
	if tautology {
		return 0, nil
	}

	switch len(lits) {
	case 0:
		return 0, fmt.Errorf("sat: empty clause is unsatisfiable")
	case 1:
		cause := store.InferenceCause(store.WriterSAT, unitPayload)
		if _, err := s.Set(lits[0], cause); err != nil {
			return 0, err
		}
		return 0, nil
	}

	c := &Clause{
		id:       ClauseID(len(e.clauses)),
		literals: append([]store.Literal(nil), lits...),
		prevPos:  2,
	}
	if learnt {
		c.status |= statusLearnt
		e.placeAssertingLiteralFirst(s, c)
	}
	e.clauses = append(e.clauses, c)
	if learnt {
		e.numLearnts++
		e.pending = append(e.pending, c)
	} else {
		e.attach(c)
	}
	return c.id, nil
}

// placeAssertingLiteralFirst swaps the learnt clause's second watched
// literal to be the one assigned at the highest decision level, matching
// the teacher's NewClause learnt-clause handling (internal/sat/clauses.go).
func (e *Engine) placeAssertingLiteralFirst(s *store.Store, c *Clause) {
	maxLevel := trail.Level(-1)
	wl := -1
	for i, l := range c.literals {
		if i == 0 {
			continue
		}
		if !s.Entails(l.Negate()) {
			continue
		}
		if lvl := s.EventLevel(l.Negate()); lvl > maxLevel {
			maxLevel = lvl
			wl = i
		}
	}
	if wl > 0 {
		c.literals[wl], c.literals[1] = c.literals[1], c.literals[wl]
	}
}

func (e *Engine) attach(c *Clause) {
	e.watch(c, c.literals[0].Negate(), c.literals[1])
	e.watch(c, c.literals[1].Negate(), c.literals[0])
}

// unitPayload is the sentinel payload used for the Cause of a literal
// asserted directly because a size-1 clause was added (no clause object
// exists to reference, so Explain must treat this as axiomatic).
const unitPayload = ^uint32(0)

// Propagate drains newly entailed literals from the trail and runs
// two-watched-literal propagation to a fixpoint (spec §4.4).
func (e *Engine) Propagate(s *store.Store) (*reasoner.Conflict, error) {
	e.drainPending(s)

	for {
		idx, ok := trail.Next(e.cursor, s.Trail())
		if !ok {
			return nil, nil
		}
		ev := s.Trail().At(idx)
		lit := ev.Lit

		lst := e.watches[lit]
		if len(lst) == 0 {
			continue
		}
		e.tmpWatchers = append(e.tmpWatchers[:0], lst...)
		e.watches[lit] = e.watches[lit][:0]

		for i, w := range e.tmpWatchers {
			if s.Value(w.guard) == store.True {
				e.watches[lit] = append(e.watches[lit], w)
				continue
			}
			ok, conflict, err := e.propagateClause(s, w.clause, lit)
			if err != nil {
				return nil, err
			}
			if !ok {
				e.watches[lit] = append(e.watches[lit], e.tmpWatchers[i+1:]...)
				return conflict, nil
			}
		}
	}
}

func (e *Engine) drainPending(s *store.Store) {
	for _, c := range e.pending {
		if !c.IsDeleted() {
			e.attach(c)
		}
	}
	e.pending = e.pending[:0]
}

// propagateClause re-examines c after lit (the negation of one of its
// watched literals) became entailed, following the watch protocol of spec
// §4.4. It returns ok=false with a conflict if the clause is violated.
func (e *Engine) propagateClause(s *store.Store, c *Clause, lit store.Literal) (ok bool, conflict *reasoner.Conflict, err error) {
	opp := lit.Negate()
	if c.literals[0] == opp {
		c.literals[0], c.literals[1] = c.literals[1], c.literals[0]
	}

	if s.Value(c.literals[0]) == store.True {
		e.watch(c, lit, c.literals[0])
		return true, nil, nil
	}

	if c.prevPos >= len(c.literals) {
		c.prevPos = 2
	}
	for i := c.prevPos; i < len(c.literals); i++ {
		if s.Value(c.literals[i]) != store.False {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], c.literals[1]
			e.watch(c, c.literals[1].Negate(), c.literals[0])
			return true, nil, nil
		}
	}
	for i := 2; i < c.prevPos; i++ {
		if s.Value(c.literals[i]) != store.False {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], c.literals[1]
			e.watch(c, c.literals[1].Negate(), c.literals[0])
			return true, nil, nil
		}
	}

	// No replacement: c.literals[0] must become true, or the clause is
	// violated.
	e.watch(c, lit, c.literals[0])
	cause := store.InferenceCause(store.WriterSAT, uint32(c.id))
	if _, err := s.Set(c.literals[0], cause); err != nil {
		conflict := &reasoner.Conflict{Literals: negateAll(c.literals, nil)}
		if c.IsLearnt() {
			e.bumpClauseActivity(c)
		}
		return false, conflict, nil
	}
	return true, nil, nil
}

func negateAll(lits []store.Literal, out []store.Literal) []store.Literal {
	out = out[:0]
	for _, l := range lits {
		out = append(out, l.Negate())
	}
	return out
}

// Explain expands a SAT-written cause into its premises (spec §4.3, §4.4).
// payload is either a ClauseID or the unitPayload sentinel for a clause that
// was simplified down to a unit literal at AddClause time (and so has no
// clause object left to reference: its premise set is empty, it was axiomatic).
func (e *Engine) Explain(lit store.Literal, payload uint32, snap *store.Snapshot, exp *store.Explanation) {
	if payload == unitPayload {
		return
	}
	c := e.clauses[payload]
	if c.IsLearnt() {
		e.bumpClauseActivity(c)
	}
	if c.literals[0] == lit {
		// Explaining why the clause asserted lit: every other literal was
		// false at the time.
		for _, l := range c.literals[1:] {
			exp.Add(l.Negate())
		}
		return
	}
	// Explaining the clause's own violation (lit is the unused -1 sentinel
	// in the teacher; here the caller asks by passing the clause's own
	// asserted literal). Fall back to the full negation for safety.
	for _, l := range c.literals {
		exp.Add(l.Negate())
	}
}

// ExplainConflict expands a violated clause directly, used by conflict
// analysis on the initial conflict (which is not itself an "assigned
// literal" explanation).
func (e *Engine) ExplainConflict(c *Clause) []store.Literal {
	if c.IsLearnt() {
		e.bumpClauseActivity(c)
	}
	e.tmpReason = negateAll(c.literals, e.tmpReason)
	return e.tmpReason
}

// ClauseOf returns the clause with the given id, for use by conflict
// analysis when it needs to walk the reason clause of a trail event whose
// cause it already knows came from this engine.
func (e *Engine) ClauseOf(id ClauseID) *Clause { return e.clauses[id] }

func (e *Engine) locked(s *store.Store, c *Clause) bool {
	cause, ok := s.CauseOf(c.literals[0])
	return ok && cause.Writer == store.WriterSAT && cause.Payload == uint32(c.id)
}

func (e *Engine) bumpClauseActivity(c *Clause) {
	c.activity += e.clauseInc
	if c.activity > 1e100 {
		e.clauseInc *= 1e-100
		for _, l := range e.clauses {
			if l.IsLearnt() {
				l.activity *= 1e-100
			}
		}
	}
}

// DecayClauseActivity ages the clause-activity increment (spec §4.4,
// "exponential decay: bump by an increment and multiply the increment by
// 1/decay each conflict").
func (e *Engine) DecayClauseActivity() {
	e.clauseInc /= e.opts.ClauseDecay
}

// ReduceDB removes the lower-activity half of unlocked forgettable clauses
// (spec §4.4).
func (e *Engine) ReduceDB(s *store.Store) {
	learnts := make([]*Clause, 0, e.numLearnts)
	for _, c := range e.clauses {
		if c.IsLearnt() && !c.IsDeleted() {
			learnts = append(learnts, c)
		}
	}
	if len(learnts) == 0 {
		return
	}
	sort.Slice(learnts, func(i, j int) bool { return learnts[i].activity < learnts[j].activity })

	lim := e.clauseInc / float64(len(learnts))
	half := len(learnts) / 2

	for i, c := range learnts {
		if i < half {
			if !e.locked(s, c) && !c.IsProtected() {
				e.deleteClause(c)
			}
		} else if !e.locked(s, c) && !c.IsProtected() && c.activity < lim {
			e.deleteClause(c)
		}
	}
	for _, c := range learnts {
		c.ClearProtected()
	}
}

func (e *Engine) deleteClause(c *Clause) {
	if c.IsDeleted() {
		return
	}
	e.unwatch(c, c.literals[0].Negate())
	e.unwatch(c, c.literals[1].Negate())
	c.status |= statusDeleted
	c.literals = nil
	e.numLearnts--
}

// Simplify removes satisfied literals from every clause and drops any
// clause that is satisfied at the root level (spec §4.4, mirroring the
// teacher's Solver.Simplify).
func (e *Engine) Simplify(s *store.Store) {
	if s.Trail().CurrentLevel() != 0 {
		panic("sat: Simplify called above root level")
	}
	for _, c := range e.clauses {
		if c.IsDeleted() || len(c.literals) == 0 {
			continue
		}
		satisfied := false
		j := 0
		for _, l := range c.literals {
			switch s.Value(l) {
			case store.True:
				satisfied = true
			case store.False:
			default:
				c.literals[j] = l
				j++
			}
		}
		if satisfied {
			e.deleteClause(c)
			continue
		}
		c.literals = c.literals[:j]
	}
}

// --- reasoner.Reasoner backtracking hooks ---
//
// The engine has no per-level state beyond what the shared domain store
// already tracks (clause locks are derived on demand from CauseOf, spec
// §9): SaveState/RestoreLast only maintain a counter, reported by NumSaved,
// that tracks the trail's decision level.

func (e *Engine) SaveState() int {
	e.savedLevels++
	return e.savedLevels
}

func (e *Engine) RestoreLast() {
	if e.savedLevels == 0 {
		panic("sat: RestoreLast called with no saved state")
	}
	e.savedLevels--
	// The cursor needs no explicit action: Next clamps itself to the
	// shrunk trail length on its next call (trail.Cursor, "resilient to
	// rollbacks").
}

func (e *Engine) NumSaved() int { return e.savedLevels }
