// Package problem implements the embedded problem-construction API of
// spec.md §6: callers register variables, clauses, STN edges, and equality
// edges, then set a branching strategy and optional objective before
// solving. There is no bespoke wire format; this is the in-process
// collaborator boundary the chronicle-to-core translator (out of scope) is
// expected to drive, grounded on the teacher's main.go's own
// parse-then-instantiate-then-solve shape, generalized from "load DIMACS
// into one SAT engine" to "register variables/constraints across all three
// reasoners".
package problem

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lcgkit/solver/internal/kernel/config"
	"github.com/lcgkit/solver/internal/kernel/eq"
	"github.com/lcgkit/solver/internal/kernel/errs"
	"github.com/lcgkit/solver/internal/kernel/reasoner"
	"github.com/lcgkit/solver/internal/kernel/sat"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/stn"
	"github.com/lcgkit/solver/internal/kernel/store"
	"github.com/lcgkit/solver/internal/kernel/trail"
)

// Sense is the direction of an optional objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// objective pairs a variable with the direction to optimize it in (spec
// §6, "setting a branching strategy and optional objective").
type objective struct {
	v     store.VarID
	sense Sense
}

// Builder accumulates variables and constraints across the SAT engine and
// the STN/equality theories before a single Build call hands them to a
// search.Driver. Variables and constraints can only be added before Build;
// Build is a one-way door, mirroring the teacher's AddClause-then-Solve
// ordering (internal/sat/solver.go never supports adding root clauses after
// search has started).
type Builder struct {
	cfg config.Config
	log zerolog.Logger

	trail *trail.Trail[store.Event]
	store *store.Store
	sat   *sat.Engine
	stn   *stn.Engine
	eq    *eq.Engine

	brancher search.Brancher
	obj      *objective

	built bool
}

// NewBuilder starts a fresh problem under cfg, logging diagnostics through
// log (use obslog.New or obslog.Nop).
func NewBuilder(cfg config.Config, log zerolog.Logger) *Builder {
	tr := trail.New[store.Event]()
	return &Builder{
		cfg:   cfg,
		log:   log,
		trail: tr,
		store: store.New(tr),
		sat:   sat.New(),
		stn:   stn.NewWithLevel(cfg.STNLevel),
		eq:    eq.New(),
	}
}

func (b *Builder) mustNotBeBuilt() {
	if b.built {
		panic("problem: builder used after Build")
	}
}

// NewVariable registers an always-present variable (spec §6, "Registering
// variables").
func (b *Builder) NewVariable(kind store.Kind, lb, ub int64, label string) store.VarID {
	b.mustNotBeBuilt()
	return b.store.NewVariable(kind, lb, ub, label)
}

// NewOptionalVariable registers a variable whose existence is gated by
// presence, as required for chronicle-derived variables that only make
// sense when the fragment that declared them is active.
func (b *Builder) NewOptionalVariable(kind store.Kind, lb, ub int64, label string, presence store.Literal) store.VarID {
	b.mustNotBeBuilt()
	return b.store.NewOptionalVariable(kind, lb, ub, label, presence)
}

// AddClause adds a root-level disjunction of literals (spec §6, "Adding
// clauses over literals").
func (b *Builder) AddClause(lits []store.Literal) error {
	b.mustNotBeBuilt()
	_, err := b.sat.AddClause(b.store, lits)
	return err
}

// AddSTNEdge declares a difference-logic edge target - source <= weight,
// active while enabler holds (spec §6, "Declaring STN edges as pairs
// (source_var, target_var, weight, enabler)").
func (b *Builder) AddSTNEdge(source, target store.VarID, weight int64, enabler store.Literal) stn.EdgeID {
	b.mustNotBeBuilt()
	return b.stn.AddEdge(b.store, source, target, weight, enabler)
}

// AddEqualityEdge declares an equality or disequality edge between a
// variable node and another node (variable or constant), gated by literal
// (spec §6, "Declaring equality edges as triples (var, node, literal,
// relation)").
func (b *Builder) AddEqualityEdge(v store.VarID, node eq.Node, literal store.Literal, relation eq.Relation) eq.EdgeID {
	b.mustNotBeBuilt()
	return b.eq.AddEdge(b.store, eq.VarNode(v), node, relation, literal)
}

// SetBranchingStrategy installs the brancher Solve/Optimize drives decisions
// with. If never called, Build installs a default VSIDS-style VarOrder
// tracking every boolean variable registered so far.
func (b *Builder) SetBranchingStrategy(brancher search.Brancher) {
	b.mustNotBeBuilt()
	b.brancher = brancher
}

// SetObjective marks v as the value to optimize, in the given sense (spec
// §6, "optional objective"; exercised by Problem.Optimize).
func (b *Builder) SetObjective(v store.VarID, sense Sense) {
	b.mustNotBeBuilt()
	b.obj = &objective{v: v, sense: sense}
}

// defaultBrancher builds a VarOrder tracking every currently-registered
// boolean variable, used when the caller never calls
// SetBranchingStrategy, mirroring the teacher's NewDefaultSolver wiring a
// default ordering rather than requiring every caller to build one.
func (b *Builder) defaultBrancher() search.Brancher {
	order := search.NewVarOrder(0.95, true)
	for _, v := range b.BoolVariables() {
		order.AddVar(v, 0, store.Unknown)
	}
	return order
}

// BoolVariables returns every boolean variable registered so far, in
// registration order. A portfolio supervisor (internal/kernel/portfolio)
// uses this to build one differently-tuned VarOrder per worker over an
// identical variable set, since every worker replays the same recipe into
// its own Builder (spec §4.8, "assigning each worker a distinct branching
// strategy").
func (b *Builder) BoolVariables() []store.VarID {
	vars := make([]store.VarID, 0, b.store.NumVariables())
	for v := store.VarID(0); int(v) < b.store.NumVariables(); v++ {
		if b.store.Variable(v).Kind == store.KindBool {
			vars = append(vars, v)
		}
	}
	return vars
}

// TimepointVariables returns every plain integer variable registered so
// far, in registration order. STN nodes are ordinary KindInt store
// variables, so this is the set a Forward(HTN)-style brancher
// (search.NewForwardOrder) refines by earliest lower bound; a portfolio
// worker assigned that strategy registers this set instead of
// BoolVariables (spec §4.7, "Forward (HTN)").
func (b *Builder) TimepointVariables() []store.VarID {
	vars := make([]store.VarID, 0, b.store.NumVariables())
	for v := store.VarID(0); int(v) < b.store.NumVariables(); v++ {
		if b.store.Variable(v).Kind == store.KindInt {
			vars = append(vars, v)
		}
	}
	return vars
}

// Build finalizes the problem and returns a Problem ready to solve. The
// builder must not be used afterward.
func (b *Builder) Build() *Problem {
	b.mustNotBeBuilt()
	b.built = true

	if b.brancher == nil {
		b.brancher = b.defaultBrancher()
	}

	theories := make([]reasoner.Reasoner, 0, 2)
	if b.cfg.STNLevel != stn.LevelNone {
		theories = append(theories, b.stn)
	}
	theories = append(theories, b.eq)

	return &Problem{
		cfg:      b.cfg,
		log:      b.log,
		trail:    b.trail,
		store:    b.store,
		sat:      b.sat,
		stn:      b.stn,
		eq:       b.eq,
		theories: theories,
		brancher: b.brancher,
		obj:      b.obj,
	}
}

// Problem is a built, solvable instance (spec §6's embedded problem,
// minus the out-of-scope chronicle/translation layers around it).
type Problem struct {
	cfg config.Config
	log zerolog.Logger

	trail *trail.Trail[store.Event]
	store *store.Store
	sat   *sat.Engine
	stn   *stn.Engine
	eq    *eq.Engine

	theories []reasoner.Reasoner
	brancher search.Brancher
	obj      *objective

	driver *search.Driver
}

// Store exposes the underlying domain store read-only access, e.g. for a
// caller to read off a model's variable values after Solve reports
// satisfiable.
func (p *Problem) Store() *store.Store { return p.store }

// driverFor lazily builds the one Driver this problem solves with, reused
// across repeated Solve/Optimize calls so an optimization loop can restart
// to root and keep going instead of rebuilding the whole reasoner stack
// each iteration.
func (p *Problem) driverFor(opts search.Options) *search.Driver {
	if p.driver == nil {
		p.driver = search.New(p.store, p.trail, p.sat, p.theories, p.brancher, opts, p.log)
	}
	return p.driver
}

// Solve runs the kernel's restart/backjump search loop once to a definite
// status (spec §4.7). It does not attempt optimization even if an
// objective was set; use Optimize for that.
func (p *Problem) Solve(opts search.Options) (search.Status, error) {
	return p.driverFor(opts).Solve()
}

// PropagateOnly runs a single fixpoint propagation round at the root
// without ever deciding, for cmd/lcgc's --no-search dump path (spec §6).
func (p *Problem) PropagateOnly(opts search.Options) (*reasoner.Conflict, error) {
	return p.driverFor(opts).PropagateOnly()
}

// Optimize implements spec §8 scenario 5: repeatedly solve, and each time a
// solution is found, tighten the objective past the incumbent and restart
// the search from scratch, until the tightened problem is proven
// unsatisfiable — at which point the previous incumbent is optimal. Returns
// errs.StatusOpt with the optimal value on success, errs.StatusUnsat if no
// solution exists at all, and propagates solving errors otherwise.
//
// Optimize requires SetObjective to have been called during building.
func (p *Problem) Optimize(opts search.Options) (errs.Status, int64, error) {
	if p.obj == nil {
		return errs.StatusUnsupportedProblem, 0, fmt.Errorf("problem: Optimize called without SetObjective")
	}

	d := p.driverFor(opts)
	haveIncumbent := false
	var best int64

	for {
		status, err := d.Solve()
		if err != nil {
			// d.Solve returns a *errs.Interrupted when opts.Interrupt fired
			// (spec §5's cooperative cancellation); FromError classifies
			// that as StatusTimeout, the closest member of §6's fixed
			// status enum, and anything else as StatusInternalError.
			return errs.FromError(err), best, err
		}

		switch status {
		case search.StatusUnsatisfiable:
			if !haveIncumbent {
				unsatErr := &errs.Unsatisfiable{}
				return errs.FromError(unsatErr), 0, unsatErr
			}
			return errs.StatusOpt, best, nil

		case search.StatusSatisfiable:
			lb, ub := p.store.Bounds(p.obj.v)
			if lb != ub {
				return errs.StatusInternalError, best, fmt.Errorf("problem: objective variable undecided at a satisfiable status")
			}
			best = lb
			haveIncumbent = true

			// Undo every decision before posting the tightened bound, so it
			// lands as a genuine root-level fact ahead of the next restart
			// (mirroring "post o<7, restart"), not as a fact hanging off
			// whatever decision level this solve happened to stop at.
			d.RestartToRoot()
			if err := p.tighten(best); err != nil {
				// The tightening itself is already infeasible (the
				// objective was already at its domain edge): best is
				// optimal.
				return errs.StatusOpt, best, nil
			}

		default:
			return errs.StatusSearchSpaceExhausted, best, nil
		}
	}
}

// tighten posts the literal excluding `best` (and anything past it, in the
// optimizing direction) as a root-level fact ahead of the next restart,
// mirroring the original's "post o<7, restart" step.
func (p *Problem) tighten(best int64) error {
	var lit store.Literal
	switch p.obj.sense {
	case Minimize:
		lit = store.LELit(p.obj.v, best-1)
	default:
		lit = store.GELit(p.obj.v, best+1)
	}
	_, err := p.store.Set(lit, store.EncodingCause())
	return err
}
