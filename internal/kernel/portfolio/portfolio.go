// Package portfolio implements the thin supervisor of spec.md §4.8: it
// builds one problem per branching strategy from an identical construction
// recipe, runs them concurrently, and returns as soon as any worker reaches
// a definite status, interrupting the rest. Grounded on
// golang.org/x/sync/errgroup for goroutine supervision the way the
// operator-lifecycle-manager pack repo supervises its own worker pools, and
// on the teacher's Driver.Solve loop generalized with a cooperative
// interrupt channel (spec §5, "checked at the top of every search
// iteration and at each save-state").
//
// Workers never share solver state. Each one replays the same Recipe into
// its own problem.Builder, so every worker's domain store assigns
// identical VarIDs to identical declarations: a VarID means the same thing
// to every worker without any need to mutate shared memory. This is the
// deep-copy-before-any-decision case of spec §4.8's "clone operations must
// deep-copy trail, domain store, clause DB, and every reasoner's state" —
// since no worker has made a decision yet when it is built, replaying the
// recipe into a fresh store produces a result indistinguishable from
// copying the root state directly. Live mid-search exchange of learnt
// clauses and improved bounds between already-running workers (the rest of
// §4.8's rebroadcast) is not wired here: InputSignal and SolverOutput name
// the intended channel contract, but Run only ever uses the
// Interrupt/SolutionFound half of it, recorded as an open item in the
// grounding ledger rather than left unmentioned.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lcgkit/solver/internal/kernel/config"
	"github.com/lcgkit/solver/internal/kernel/errs"
	"github.com/lcgkit/solver/internal/kernel/problem"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/store"
)

// InputSignal is what flows into a worker from the supervisor (spec §5).
// Exactly one field is meaningful per value.
type InputSignal struct {
	Interrupt    bool
	LearntClause []store.Literal
	Solution     []bool
}

// SolverOutput is what flows out of a worker to the supervisor (spec §5).
// Exactly one field is meaningful per value.
type SolverOutput struct {
	Worker   string
	Learnt   []store.Literal
	Solution []bool
}

// Kind selects which of spec §4.7's three brancher algorithms a worker
// runs; the zero value is Activity, so a Strategy built without setting
// Kind still behaves the way it always did.
type Kind int

const (
	// Activity runs search.VarOrder (VSIDS-style activity heap).
	Activity Kind = iota
	// LearningRate runs search.LearningRateOrder (conflicts-involving /
	// conflicts-since-assigned ratio).
	LearningRate
	// Forward runs search.ForwardOrder over TimepointVariables, picking
	// the earliest-lower-bound undecided timepoint each time.
	Forward
)

// Strategy names one worker's branching diversity: the supervisor assigns
// each worker a distinct brancher algorithm and tuning rather than running
// identical copies of the same search (spec §4.8, "assigning each worker a
// distinct branching strategy"). VariableDecay/PhaseSaving/InitialPhase
// only apply when Kind is Activity or LearningRate; Forward ignores them.
type Strategy struct {
	Name          string
	Kind          Kind
	VariableDecay float64
	PhaseSaving   bool
	InitialPhase  store.LBool
}

// Recipe populates a freshly created Builder. The supervisor calls it once
// per worker, so every worker's problem is built from the same sequence of
// NewVariable/AddClause/... calls and therefore shares a VarID space.
type Recipe func(b *problem.Builder)

// Result is one worker's final outcome.
type Result struct {
	Strategy string
	Status   search.Status
}

// Run races len(strategies) workers, each solving its own clone of the
// problem built by recipe under a distinct Strategy, and returns the first
// definite result (satisfiable or unsatisfiable) reached by any of them.
// Every other worker is interrupted via a closed channel standing in for
// InputSignal{Interrupt: true}, the cooperative cancellation spec §5
// describes as "each worker returns promptly with its best-so-far". If
// every worker reports StatusUnknown (budget exhausted without resolving),
// Run returns one such result rather than an error. ctx cancellation
// interrupts every worker the same way.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger, recipe Recipe, strategies []Strategy, opts search.Options) (Result, error) {
	if len(strategies) == 0 {
		return Result{}, fmt.Errorf("portfolio: no strategies given")
	}

	interrupt := newInterrupter()
	defer interrupt.fire()

	if ctx.Err() != nil {
		// Already cancelled: fire synchronously so every worker observes it
		// on its very first search iteration instead of racing a watchdog
		// goroutine against the first decision.
		interrupt.fire()
	} else if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				interrupt.fire()
			case <-interrupt.ch:
			}
		}()
	}

	results := make(chan Result, len(strategies))
	g, _ := errgroup.WithContext(ctx)

	for _, st := range strategies {
		st := st
		g.Go(func() error {
			status, err := runWorker(cfg, log, recipe, st, opts, interrupt.ch)
			if err != nil {
				var interrupted *errs.Interrupted
				if errors.As(err, &interrupted) {
					// Expected outcome for every losing worker once a
					// sibling or ctx fires the shared interrupt (spec §5,
					// "each worker returns promptly with its best-so-far");
					// not a supervisor-level failure.
					results <- Result{Strategy: st.Name, Status: search.StatusUnknown}
					return nil
				}
				return fmt.Errorf("portfolio: worker %s: %w", st.Name, err)
			}
			if status == search.StatusSatisfiable || status == search.StatusUnsatisfiable {
				interrupt.fire()
			}
			results <- Result{Strategy: st.Name, Status: status}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	close(results)

	var fallback Result
	for r := range results {
		if r.Status == search.StatusSatisfiable || r.Status == search.StatusUnsatisfiable {
			return r, nil
		}
		fallback = r
	}
	return fallback, nil
}

// runWorker builds one independent problem from recipe, tunes its
// brancher per st, and solves it with opts.Interrupt wired to interrupt so
// the driver checks it at the top of every search iteration (spec §5).
func runWorker(cfg config.Config, log zerolog.Logger, recipe Recipe, st Strategy, opts search.Options, interrupt <-chan struct{}) (search.Status, error) {
	b := problem.NewBuilder(cfg, log.With().Str("worker", st.Name).Logger())
	recipe(b)
	b.SetBranchingStrategy(brancherFor(b, st))
	p := b.Build()

	workerOpts := opts
	workerOpts.VariableDecay = st.VariableDecay
	workerOpts.PhaseSaving = st.PhaseSaving
	workerOpts.Interrupt = interrupt

	return p.Solve(workerOpts)
}

// brancherFor builds the brancher st.Kind names, giving each worker a
// genuinely different branching algorithm rather than the same one
// retuned, mirroring spec §4.8's "distinct branching strategy per
// worker" against the three algorithms spec §4.7 names.
func brancherFor(b *problem.Builder, st Strategy) search.Brancher {
	switch st.Kind {
	case LearningRate:
		order := search.NewLearningRateOrder(st.PhaseSaving)
		for _, v := range b.BoolVariables() {
			order.AddVar(v, st.InitialPhase)
		}
		return order
	case Forward:
		order := search.NewForwardOrder()
		for _, v := range b.TimepointVariables() {
			order.AddVar(v)
		}
		return order
	default:
		order := search.NewVarOrder(st.VariableDecay, st.PhaseSaving)
		for _, v := range b.BoolVariables() {
			order.AddVar(v, 0, st.InitialPhase)
		}
		return order
	}
}

// interrupter is a once-closeable broadcast channel: every worker and the
// ctx watchdog goroutine may call fire concurrently, but the channel closes
// exactly once.
type interrupter struct {
	ch   chan struct{}
	once sync.Once
}

func newInterrupter() *interrupter {
	return &interrupter{ch: make(chan struct{})}
}

func (i *interrupter) fire() {
	i.once.Do(func() { close(i.ch) })
}
