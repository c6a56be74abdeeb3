// Package search implements the solving loop that drives the SAT engine and
// every registered theory to a fixed point, learns a nogood on conflict, and
// backjumps, generalizing the teacher's internal/sat/solver.go Solve/Search
// loop from a single boolean reasoner to the shared domain store plus an
// arbitrary set of reasoner.Reasoner theories (spec §4.7, §4.8).
package search

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lcgkit/solver/internal/kernel/errs"
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/sat"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// Status is the outcome of a solving attempt.
type Status int

const (
	StatusUnknown Status = iota
	StatusSatisfiable
	StatusUnsatisfiable
)

func (s Status) String() string {
	switch s {
	case StatusSatisfiable:
		return "SATISFIABLE"
	case StatusUnsatisfiable:
		return "UNSATISFIABLE"
	default:
		return "UNKNOWN"
	}
}

// Options configures the restart schedule and activity decay, mirroring the
// teacher's sat.Options/DefaultOptions (internal/sat/solver.go).
type Options struct {
	VariableDecay float64
	ClauseDecay   float64
	PhaseSaving   bool

	// MaxConflicts stops the search after this many total conflicts. Negative
	// means unbounded.
	MaxConflicts int
	// Timeout stops the search after this long. Zero means unbounded.
	Timeout time.Duration

	// ProgressEvery logs a stats line every this many conflicts, mirroring
	// the teacher's printSearchStats cadence. Zero disables it.
	ProgressEvery int

	// Interrupt, if non-nil, is checked at the top of every search iteration
	// and at each restart; a closed channel stops the search promptly with
	// StatusUnknown, the cooperative cancellation of spec §5's portfolio
	// ("checked at the top of every search iteration and at each
	// save-state"). Nil means never interrupted.
	Interrupt <-chan struct{}
}

var DefaultOptions = Options{
	VariableDecay: 0.95,
	ClauseDecay:   0.999,
	PhaseSaving:   true,
	MaxConflicts:  -1,
	ProgressEvery: 10000,
}

// Stats tallies search activity, reported at the end of a run the way the
// teacher's printSearchStats reports it during one.
type Stats struct {
	Conflicts    int
	Restarts     int
	Decisions    int
	Propagations int
}

// Driver owns the shared trail and domain store plus every reasoner taking
// part in propagation, and runs the restart/backjump search loop over them
// (spec §4.7).
type Driver struct {
	store     *store.Store
	trail     *trail.Trail[store.Event]
	sat       *sat.Engine
	theories  []reasoner.Reasoner
	reasoners map[store.WriterID]reasoner.Reasoner
	brancher  Brancher

	opts  Options
	stats Stats
	log   zerolog.Logger

	startedAt     time.Time
	lastProgressAt int
}

// New builds a driver over s/tr, with satEngine always propagated first each
// round and theories propagated afterward in the given order (spec §4.7,
// "SAT first, then theories in registration order").
func New(s *store.Store, tr *trail.Trail[store.Event], satEngine *sat.Engine, theories []reasoner.Reasoner, brancher Brancher, opts Options, log zerolog.Logger) *Driver {
	reasoners := map[store.WriterID]reasoner.Reasoner{satEngine.Identity(): satEngine}
	for _, th := range theories {
		reasoners[th.Identity()] = th
	}
	return &Driver{
		store:     s,
		trail:     tr,
		sat:       satEngine,
		theories:  theories,
		reasoners: reasoners,
		brancher:  brancher,
		opts:      opts,
		log:       log,
	}
}

// Stats reports the current search counters.
func (d *Driver) Stats() Stats { return d.stats }

// PropagateOnly runs a single propagation round to a fixpoint without ever
// deciding, for a caller that wants to inspect what pure constraint
// propagation derives at the root (spec §6's CLI "--no-search,
// propagation-only dump"). It never learns or backjumps: a root-level
// conflict is returned to the caller as-is instead of being turned into
// StatusUnsatisfiable.
func (d *Driver) PropagateOnly() (*reasoner.Conflict, error) {
	return d.propagateToFixpoint()
}

// RestartToRoot backtracks every reasoner to decision level 0, undoing
// every decision without touching any root-level fact. It lets a caller
// that reuses one Driver across several independent Solve calls (e.g. an
// optimization loop posting a tightened objective bound between runs) get
// back to a clean root before posting the next fact, without discarding
// and rebuilding the whole reasoner stack.
func (d *Driver) RestartToRoot() {
	d.backtrackTo(0)
}

// Solve runs the restart loop to completion, mirroring the teacher's
// Solver.Solve: each round grows the conflict and learnt-clause budgets
// by 10% (numConflicts += numConflicts/10) until a definite status is
// reached or a stop condition fires.
func (d *Driver) Solve() (Status, error) {
	d.startedAt = time.Now()
	numConflicts := 100
	numLearnts := d.sat.NumConstraints()/3 + 1

	for {
		status, err := d.search(numConflicts, numLearnts)
		if err != nil {
			return StatusUnknown, err
		}
		if status != StatusUnknown {
			d.logOutcome(status)
			return status, nil
		}
		if d.shouldStop() {
			d.logOutcome(StatusUnknown)
			if d.interrupted() {
				return StatusUnknown, &errs.Interrupted{Reason: "search interrupted before a definite status"}
			}
			return StatusUnknown, nil
		}
		d.stats.Restarts++
		numConflicts += numConflicts / 10
		numLearnts += numLearnts / 20
	}
}

func (d *Driver) logOutcome(status Status) {
	d.log.Info().
		Str("status", status.String()).
		Int("conflicts", d.stats.Conflicts).
		Int("restarts", d.stats.Restarts).
		Int("decisions", d.stats.Decisions).
		Dur("elapsed", time.Since(d.startedAt)).
		Msg("search finished")
}

func (d *Driver) shouldStop() bool {
	if d.opts.MaxConflicts >= 0 && d.stats.Conflicts >= d.opts.MaxConflicts {
		return true
	}
	if d.opts.Timeout > 0 && time.Since(d.startedAt) >= d.opts.Timeout {
		return true
	}
	if d.interrupted() {
		return true
	}
	return false
}

// Interrupted reports whether opts.Interrupt has fired, for a caller that
// needs to tell a genuine cooperative cancellation apart from Solve simply
// running out of its conflict/timeout budget; both return (StatusUnknown,
// nil) from search, but only the former also makes Solve return a
// *errs.Interrupted error.
func (d *Driver) Interrupted() bool { return d.interrupted() }

// interrupted reports whether opts.Interrupt has fired, without blocking.
func (d *Driver) interrupted() bool {
	if d.opts.Interrupt == nil {
		return false
	}
	select {
	case <-d.opts.Interrupt:
		return true
	default:
		return false
	}
}

// search runs one restart round: propagate to a fixpoint, learn and backjump
// on conflict, or decide, until the round's conflict budget is spent, the
// problem is solved, found unsatisfiable at the root, or a stop condition
// fires (spec §4.7, mirroring Solver.Search).
func (d *Driver) search(maxConflictsThisRound, maxLearnts int) (Status, error) {
	conflictsThisRound := 0

	for {
		if d.interrupted() {
			return StatusUnknown, nil
		}

		conflict, err := d.propagateToFixpoint()
		if err != nil {
			return StatusUnknown, err
		}

		if conflict != nil {
			d.stats.Conflicts++
			conflictsThisRound++
			d.maybeReportProgress()

			if d.trail.CurrentLevel() == 0 {
				return StatusUnsatisfiable, nil
			}

			learnt, backtrackLevel := d.analyze(conflict)
			d.backtrackTo(backtrackLevel)
			if err := d.record(learnt); err != nil {
				return StatusUnknown, err
			}
			d.bumpActivities(learnt)
			continue
		}

		if d.allDecided() {
			return StatusSatisfiable, nil
		}

		if d.sat.NumLearnts() >= maxLearnts {
			if d.trail.CurrentLevel() == 0 {
				d.sat.Simplify(d.store)
			}
			d.sat.ReduceDB(d.store)
		}

		if conflictsThisRound > maxConflictsThisRound {
			d.backtrackTo(0)
			return StatusUnknown, nil
		}
		if d.shouldStop() {
			return StatusUnknown, nil
		}

		lit, ok := d.brancher.NextDecision(d.store)
		if !ok {
			return StatusSatisfiable, nil
		}
		d.decide(lit)
	}
}

// propagateToFixpoint runs the SAT engine, then every theory in order,
// repeating the whole round while any reasoner made progress, since a
// theory's tightening can unblock further SAT propagation and vice versa
// (spec §4.7, "fixpoint across reasoners").
func (d *Driver) propagateToFixpoint() (*reasoner.Conflict, error) {
	for {
		before := d.trail.Len()

		if conflict, err := d.sat.Propagate(d.store); err != nil {
			return nil, err
		} else if conflict != nil {
			return conflict, nil
		}

		for _, th := range d.theories {
			conflict, err := th.Propagate(d.store)
			if err != nil {
				return nil, err
			}
			if conflict != nil {
				return conflict, nil
			}
		}

		after := d.trail.Len()
		d.stats.Propagations += after - before
		if after == before {
			return nil, nil
		}
	}
}

// allDecided reports whether every in-scope variable's domain has collapsed
// to a single value. Optional variables whose presence is still unresolved
// are skipped: their own domain is irrelevant until presence is decided, and
// the presence variable itself is checked on its own turn through the loop.
func (d *Driver) allDecided() bool {
	for v := store.VarID(0); int(v) < d.store.NumVariables(); v++ {
		if !d.store.Entails(d.store.Presence(v)) {
			continue
		}
		lb, ub := d.store.Bounds(v)
		if lb != ub {
			return false
		}
	}
	return true
}

// decide pushes a new checkpoint in lockstep across the trail and every
// reasoner, then asserts lit as a branching decision (spec §4.1, "lockstep
// save").
func (d *Driver) decide(lit store.Literal) {
	d.stats.Decisions++
	d.trail.Save()
	d.sat.SaveState()
	for _, th := range d.theories {
		th.SaveState()
	}
	if _, err := d.store.Set(lit, store.DecisionCause()); err != nil {
		panic(fmt.Sprintf("search: decision literal %s emptied its own domain", lit))
	}
}

// backtrackTo rolls the trail, and every reasoner in lockstep, back to level,
// mirroring the teacher's cancelUntil generalized across reasoners (spec
// §4.1, §4.7). Any tracked boolean variable whose domain widens back open is
// returned to the brancher's heap, mirroring order.Undo being called from the
// teacher's undoOne.
func (d *Driver) backtrackTo(level trail.Level) {
	for d.trail.CurrentLevel() > level {
		d.trail.Restore(func(ev store.Event) {
			val := d.store.Value(store.PositiveLiteral(ev.Lit.Var))
			d.store.Undo(ev)
			if lb, ub := d.store.Bounds(ev.Lit.Var); lb != ub {
				d.brancher.Reinsert(ev.Lit.Var, val)
			}
		})
		d.sat.RestoreLast()
		for _, th := range d.theories {
			th.RestoreLast()
		}
	}
}

// record adds the learnt clause to the SAT engine's forgettable database and
// immediately asserts its asserting literal, mirroring the teacher's record:
// NewClause(learnt, true) followed by enqueue(clause[0], c).
func (d *Driver) record(learnt []store.Literal) error {
	id := d.sat.AddForgettable(d.store, learnt)
	if len(learnt) == 1 {
		// addClauseImpl already asserted the sole literal directly as an
		// axiomatic unit fact; nothing further to record.
		return nil
	}
	cause := store.InferenceCause(store.WriterSAT, uint32(id))
	_, err := d.store.Set(learnt[0], cause)
	return err
}

func (d *Driver) bumpActivities(learnt []store.Literal) {
	for _, lit := range learnt {
		d.brancher.Bump(lit.Var)
	}
	d.brancher.Decay()
	d.sat.DecayClauseActivity()
}

func (d *Driver) maybeReportProgress() {
	if d.opts.ProgressEvery <= 0 {
		return
	}
	if d.stats.Conflicts-d.lastProgressAt < d.opts.ProgressEvery {
		return
	}
	d.lastProgressAt = d.stats.Conflicts
	fmt.Printf("c %14.3fs %14d %14d %14d %14d\n",
		time.Since(d.startedAt).Seconds(), d.stats.Propagations, d.stats.Conflicts, d.stats.Restarts, d.sat.NumLearnts())
}
