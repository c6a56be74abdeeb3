package search

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lcgkit/solver/internal/kernel/errs"
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/sat"
	"github.com/lcgkit/solver/internal/kernel/stn"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

func newTestDriver(theories []reasoner.Reasoner, brancher Brancher) (*trail.Trail[store.Event], *store.Store, *sat.Engine, *Driver) {
	tr := trail.New[store.Event]()
	s := store.New(tr)
	se := sat.New()
	d := New(s, tr, se, theories, brancher, DefaultOptions, zerolog.Nop())
	return tr, s, se, d
}

// TestSolveUnsatAtRoot checks that a contradiction surfacing purely from unit
// propagation at the root (no decision ever made) is reported as
// UNSATISFIABLE: a is fixed true by a unit clause, and two binary clauses
// (!a or b), (!a or !b) then both go unit on b in opposite directions.
func TestSolveUnsatAtRoot(t *testing.T) {
	_, s, se, d := newTestDriver(nil, NewVarOrder(0.95, true))

	a := s.NewVariable(store.KindBool, 0, 1, "a")
	b := s.NewVariable(store.KindBool, 0, 1, "b")
	// Both binary clauses are added while a and b are still unresolved, so
	// neither is simplified away at add time; only the later unit clause
	// pinning a kicks off the chain that the SAT engine's watch-based
	// propagation (not clause-add-time simplification) must resolve into a
	// conflict.
	if _, err := se.AddClause(s, []store.Literal{store.NegativeLiteral(a), store.PositiveLiteral(b)}); err != nil {
		t.Fatal(err)
	}
	if _, err := se.AddClause(s, []store.Literal{store.NegativeLiteral(a), store.NegativeLiteral(b)}); err != nil {
		t.Fatal(err)
	}
	if _, err := se.AddClause(s, []store.Literal{store.PositiveLiteral(a)}); err != nil {
		t.Fatal(err)
	}

	status, err := d.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusUnsatisfiable {
		t.Fatalf("status = %s, want UNSATISFIABLE", status)
	}
}

// TestSolveFindsSatisfyingAssignment checks that a single non-unit clause
// forces the brancher to make a decision and the driver reports a model
// satisfying it.
func TestSolveFindsSatisfyingAssignment(t *testing.T) {
	_, s, se, d := newTestDriver(nil, NewVarOrder(0.95, true))

	a := s.NewVariable(store.KindBool, 0, 1, "a")
	b := s.NewVariable(store.KindBool, 0, 1, "b")
	order := d.brancher.(*VarOrder)
	order.AddVar(a, 0, store.Unknown)
	order.AddVar(b, 0, store.Unknown)

	if _, err := se.AddClause(s, []store.Literal{store.PositiveLiteral(a), store.PositiveLiteral(b)}); err != nil {
		t.Fatal(err)
	}

	status, err := d.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusSatisfiable {
		t.Fatalf("status = %s, want SATISFIABLE", status)
	}
	if s.Value(store.PositiveLiteral(a)) != store.True && s.Value(store.PositiveLiteral(b)) != store.True {
		t.Fatalf("neither a nor b is true, clause (a or b) is violated")
	}
}

// TestSolveLearnsAcrossTheoryBoundary reproduces a boolean literal gating an
// STN edge that is already infeasible against the (pinned) time points it
// would connect: x=0, y=1, z=2 with always-on edges y-x<=1, z-y<=1, and a
// pending x-z<=-3 gated by l. The STN theory's own pending-edge feasibility
// check (spec §4.5, LevelFull) infers l false directly during the very first
// propagation round, before the driver ever makes a decision; this checks
// that a theory's inference on a plain boolean variable is correctly picked
// up by the driver's own completeness check.
func TestSolveLearnsAcrossTheoryBoundary(t *testing.T) {
	stnEngine := stn.New()
	order := NewVarOrder(0.95, true)
	_, s, se, d := newTestDriver([]reasoner.Reasoner{stnEngine}, order)

	x := s.NewVariable(store.KindInt, 0, 0, "x")
	y := s.NewVariable(store.KindInt, 1, 1, "y")
	z := s.NewVariable(store.KindInt, 2, 2, "z")
	l := s.NewVariable(store.KindBool, 0, 1, "l")
	order.AddVar(l, 0, store.Unknown)

	always := s.Presence(x)
	stnEngine.AddEdge(s, x, y, 1, always)               // y - x <= 1
	stnEngine.AddEdge(s, y, z, 1, always)               // z - y <= 1
	stnEngine.AddEdge(s, z, x, -3, store.PositiveLiteral(l)) // x - z <= -3

	status, err := d.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusSatisfiable {
		t.Fatalf("status = %s, want SATISFIABLE (l must be forced false)", status)
	}
	if s.Value(store.PositiveLiteral(l)) != store.False {
		t.Fatalf("l = %s, want false: x=0,y=1,z=2 makes x-z<=-3 infeasible", s.Value(store.PositiveLiteral(l)))
	}
}

// TestSolveRespectsInterrupt checks that an already-fired Interrupt channel
// stops the search with StatusUnknown on the very first iteration, even
// with an unbounded conflict budget and no clauses at all (spec §5's
// portfolio cancellation, "checked at the top of every search iteration"),
// and that Solve reports the stop as a *errs.Interrupted error rather than
// the bare (StatusUnknown, nil) an ordinary exhausted restart budget
// returns, so a caller can tell the two apart.
func TestSolveRespectsInterrupt(t *testing.T) {
	tr := trail.New[store.Event]()
	s := store.New(tr)
	se := sat.New()
	order := NewVarOrder(0.95, true)
	a := s.NewVariable(store.KindBool, 0, 1, "a")
	order.AddVar(a, 0, store.Unknown)

	interrupted := make(chan struct{})
	close(interrupted)

	opts := DefaultOptions
	opts.Interrupt = interrupted
	d := New(s, tr, se, nil, order, opts, zerolog.Nop())

	status, err := d.Solve()
	var interruptedErr *errs.Interrupted
	if !errors.As(err, &interruptedErr) {
		t.Fatalf("err = %v, want a *errs.Interrupted", err)
	}
	if status != StatusUnknown {
		t.Fatalf("status = %s, want UNKNOWN (interrupted before any decision)", status)
	}
	if s.Value(store.PositiveLiteral(a)) != store.Unknown {
		t.Fatalf("a = %s, want still undecided: search must stop before deciding anything", s.Value(store.PositiveLiteral(a)))
	}
	if !d.Interrupted() {
		t.Fatal("d.Interrupted() = false, want true after an interrupted Solve")
	}
}
