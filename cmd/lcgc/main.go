// Command lcgc drives the kernel end to end over a DIMACS CNF instance, the
// way the teacher's main.go drives internal/sat, rebuilt on
// github.com/spf13/cobra + github.com/spf13/pflag instead of the bare flag
// package, with the flag surface and exit codes of spec.md §6's CLI section
// (SPEC_FULL.md §10). This is the out-of-scope "CLI option handling"
// collaborator: a convenience driver for the embedded problem API, not part
// of the core.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lcgkit/solver/internal/dimacs"
	kconfig "github.com/lcgkit/solver/internal/kernel/config"
	"github.com/lcgkit/solver/internal/kernel/obslog"
	"github.com/lcgkit/solver/internal/kernel/portfolio"
	"github.com/lcgkit/solver/internal/kernel/problem"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/store"
)

var (
	flagOutput   string
	flagOptimize bool
	flagNoSearch bool
	flagStrategy []string
	flagVerbose  bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lcgc <instance.cnf>",
		Short: "Drive the lazy-clause-generation kernel over a CNF instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flagOutput, "output", "", "write the satisfying model to this path instead of stdout")
	fs.BoolVar(&flagOptimize, "optimize", false, "run the optimization loop instead of a single solve (requires an objective; CNF instances have none, so this reports unsupported)")
	fs.BoolVar(&flagNoSearch, "no-search", false, "propagate to a fixpoint at the root and dump the result without ever deciding")
	fs.StringArrayVar(&flagStrategy, "strategy", nil, "brancher strategy for one portfolio worker (activity|learning-rate|forward), repeatable; passing it 2+ times runs internal/kernel/portfolio instead of a single solve")
	fs.BoolVarP(&flagVerbose, "verbose", "v", false, "enable pretty structured diagnostics on stderr")

	kconfig.BindFlags(fs)

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet, instanceFile string) error {
	cfg, err := kconfig.Load(fs)
	if err != nil {
		return fmt.Errorf("lcgc: %w", err)
	}

	log := obslog.New("lcgc", obslog.Options{Pretty: flagVerbose})

	inst, err := loadCNF(instanceFile)
	if err != nil {
		return fmt.Errorf("lcgc: could not load instance: %w", err)
	}

	fmt.Printf("c variables:  %d\n", inst.nVars)
	fmt.Printf("c clauses:    %d\n", len(inst.clauses))
	fmt.Printf("c strategies: %v\n", flagStrategy)

	if flagNoSearch {
		b := problem.NewBuilder(cfg, log)
		inst.replay(b)
		p := b.Build()

		start := time.Now()
		conflict, err := p.PropagateOnly(search.DefaultOptions)
		fmt.Printf("c time (sec): %f\n", time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("lcgc: %w", err)
		}
		if conflict != nil {
			fmt.Println("c status:     UNSATISFIABLE (found by root propagation alone)")
			return fmt.Errorf("lcgc: instance is UNSATISFIABLE")
		}
		fmt.Println("c status:     UNKNOWN (propagation-only dump, no decisions made)")
		return writeModel(p, inst.nVars)
	}

	opts := search.DefaultOptions

	if strategies := strategiesFor(flagStrategy); len(strategies) > 0 {
		start := time.Now()
		result, err := portfolio.Run(context.Background(), cfg, log, inst.replay, strategies, opts)
		elapsed := time.Since(start)
		if err != nil {
			return fmt.Errorf("lcgc: %w", err)
		}

		fmt.Printf("c time (sec): %f\n", elapsed.Seconds())
		fmt.Printf("c status:     %s (won by strategy %q)\n", result.Status, result.Strategy)
		if result.Status != search.StatusSatisfiable {
			return fmt.Errorf("lcgc: instance is %s", result.Status)
		}
		// Every portfolio worker solves a private copy of the problem (spec
		// §4.8, "workers perform no shared-memory state mutation"); none of
		// them survives Run for a caller to read a model off, so a model
		// dump requires a single-strategy run instead.
		fmt.Println("c note:       portfolio mode reports status only; omit --strategy to dump a model")
		return nil
	}

	b := problem.NewBuilder(cfg, log)
	inst.replay(b)
	p := b.Build()

	if flagOptimize {
		start := time.Now()
		status, best, err := p.Optimize(opts)
		elapsed := time.Since(start)
		if err != nil {
			return fmt.Errorf("lcgc: %w", err)
		}
		fmt.Printf("c time (sec): %f\n", elapsed.Seconds())
		fmt.Printf("c status:     %s\n", status)
		fmt.Printf("c objective:  %d\n", best)
		return nil
	}

	start := time.Now()
	status, err := p.Solve(opts)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("lcgc: %w", err)
	}

	fmt.Printf("c time (sec): %f\n", elapsed.Seconds())
	fmt.Printf("c status:     %s\n", status)

	if status != search.StatusSatisfiable {
		return fmt.Errorf("lcgc: instance is %s", status)
	}

	return writeModel(p, inst.nVars)
}

// cnfInstance is a CNF parsed once up front, replayed into as many fresh
// Builders as needed: a single build for a plain solve or --optimize, or one per
// portfolio worker (internal/kernel/portfolio.Recipe) so every worker
// assigns identical VarIDs to identical DIMACS variables without re-reading
// and re-parsing the file once per worker.
type cnfInstance struct {
	nVars   int
	clauses [][]store.Literal
}

func loadCNF(path string) (*cnfInstance, error) {
	inst := &cnfInstance{}
	c := &cnfCapture{inst: inst}
	if err := dimacs.Load(path, false, c); err != nil {
		return nil, err
	}
	return inst, nil
}

// replay re-declares every variable and clause this instance was parsed
// with into b, in the same order they were first seen, so VarIDs line up
// exactly with the original parse.
func (inst *cnfInstance) replay(b *problem.Builder) {
	for i := 0; i < inst.nVars; i++ {
		b.NewVariable(store.KindBool, 0, 1, fmt.Sprintf("x%d", i+1))
	}
	for _, clause := range inst.clauses {
		_ = b.AddClause(clause)
	}
}

// cnfCapture adapts dimacs.Load's Writer contract onto a cnfInstance
// instead of a live Builder, so the file is parsed exactly once regardless
// of how many times the parsed instance is later replayed.
type cnfCapture struct {
	inst *cnfInstance
}

func (c *cnfCapture) AddVariable() store.VarID {
	v := store.VarID(c.inst.nVars)
	c.inst.nVars++
	return v
}

func (c *cnfCapture) AddClause(lits []store.Literal) error {
	clause := make([]store.Literal, len(lits))
	copy(clause, lits)
	c.inst.clauses = append(c.inst.clauses, clause)
	return nil
}

// strategiesFor turns --strategy's repeated values into portfolio
// strategies, alternating the initial phase across repeats of the same
// kind so two workers running the same algorithm still diverge (spec
// §4.8, "assigning each worker a distinct branching strategy"). Fewer than
// two names means no portfolio breadth was requested; run() falls back to
// a single Solve/Optimize call in that case.
func strategiesFor(names []string) []portfolio.Strategy {
	if len(names) < 2 {
		return nil
	}
	strategies := make([]portfolio.Strategy, 0, len(names))
	for i, name := range names {
		st := portfolio.Strategy{
			Name:          fmt.Sprintf("%s-%d", name, i),
			VariableDecay: 0.95,
			PhaseSaving:   true,
			InitialPhase:  store.True,
		}
		if i%2 == 1 {
			st.InitialPhase = store.False
		}
		switch name {
		case "learning-rate":
			st.Kind = portfolio.LearningRate
		case "forward":
			st.Kind = portfolio.Forward
		default:
			st.Kind = portfolio.Activity
		}
		strategies = append(strategies, st)
	}
	return strategies
}

func writeModel(p *problem.Problem, nVars int) error {
	w := os.Stdout
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("lcgc: could not create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	for v := store.VarID(0); int(v) < nVars; v++ {
		val := p.Store().Value(store.PositiveLiteral(v))
		sign := "-"
		if val == store.True {
			sign = ""
		}
		fmt.Fprintf(w, "%s%d ", sign, v+1)
	}
	fmt.Fprintln(w, "0")
	return nil
}
