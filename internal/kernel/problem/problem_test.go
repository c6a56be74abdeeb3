package problem

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcgkit/solver/internal/kernel/config"
	"github.com/lcgkit/solver/internal/kernel/errs"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/store"
)

// TestBuilderUnitPropagation reproduces spec.md §8 scenario 1: a clause
// {a,b} plus a forced a=false must entail b=true after propagation.
func TestBuilderUnitPropagation(t *testing.T) {
	b := NewBuilder(config.Default(), zerolog.Nop())

	a := b.NewVariable(store.KindBool, 0, 1, "a")
	v := b.NewVariable(store.KindBool, 0, 1, "b")
	require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(a), store.PositiveLiteral(v)}))
	require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(a)}))

	p := b.Build()
	status, err := p.Solve(search.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, search.StatusSatisfiable, status)
	assert.Equal(t, store.False, p.Store().Value(store.PositiveLiteral(a)))
	assert.Equal(t, store.True, p.Store().Value(store.PositiveLiteral(v)))
}

// TestOptimizeFindsMinimum reproduces spec.md §8 scenario 5: an integer
// objective admitting 3 or 7 must converge to the minimum, 3.
func TestOptimizeFindsMinimum(t *testing.T) {
	b := NewBuilder(config.Default(), zerolog.Nop())

	o := b.NewVariable(store.KindInt, 0, 10, "o")
	pickSeven := b.NewVariable(store.KindBool, 0, 1, "pick-seven")
	// pickSeven => o=7 ; !pickSeven => o=3, encoded as two implications over
	// half-space literals so the objective only ever takes one of the two
	// values.
	require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(pickSeven), store.LELit(o, 7)}))
	require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(pickSeven), store.GELit(o, 7)}))
	require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(pickSeven), store.LELit(o, 3)}))
	require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(pickSeven), store.GELit(o, 3)}))

	b.SetObjective(o, Minimize)
	p := b.Build()

	status, best, err := p.Optimize(search.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, errs.StatusOpt, status)
	assert.Equal(t, int64(3), best)
}

func TestOptimizeWithoutObjective(t *testing.T) {
	b := NewBuilder(config.Default(), zerolog.Nop())
	b.NewVariable(store.KindBool, 0, 1, "a")
	p := b.Build()

	status, _, err := p.Optimize(search.DefaultOptions)
	assert.Error(t, err)
	assert.Equal(t, errs.StatusUnsupportedProblem, status)
}

// TestOptimizeUnsatisfiable reproduces spec.md §8's "no solution at all"
// outcome: clauses (!a or b) and (!a or !b) plus the unit a leave no
// solution, which root propagation finds, so Optimize must report
// StatusUnsat via a real *errs.Unsatisfiable, not a bare nil error.
func TestOptimizeUnsatisfiable(t *testing.T) {
	b := NewBuilder(config.Default(), zerolog.Nop())

	a := b.NewVariable(store.KindBool, 0, 1, "a")
	b2 := b.NewVariable(store.KindBool, 0, 1, "b")
	require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(a), store.PositiveLiteral(b2)}))
	require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(a), store.NegativeLiteral(b2)}))
	require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(a)}))

	o := b.NewVariable(store.KindInt, 0, 10, "o")
	b.SetObjective(o, Minimize)
	p := b.Build()

	status, _, err := p.Optimize(search.DefaultOptions)
	var unsat *errs.Unsatisfiable
	require.True(t, errors.As(err, &unsat), "err = %v, want a *errs.Unsatisfiable", err)
	assert.Equal(t, errs.StatusUnsat, status)
}

// TestOptimizeInterrupted checks that an already-fired Interrupt channel
// surfaces as StatusTimeout backed by a real *errs.Interrupted, exercising
// FromError's *Interrupted -> StatusTimeout mapping end to end.
func TestOptimizeInterrupted(t *testing.T) {
	b := NewBuilder(config.Default(), zerolog.Nop())
	a := b.NewVariable(store.KindBool, 0, 1, "a")
	o := b.NewVariable(store.KindInt, 0, 10, "o")
	require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(a)}))
	b.SetObjective(o, Minimize)
	p := b.Build()

	interrupted := make(chan struct{})
	close(interrupted)
	opts := search.DefaultOptions
	opts.Interrupt = interrupted

	status, _, err := p.Optimize(opts)
	var interruptedErr *errs.Interrupted
	require.True(t, errors.As(err, &interruptedErr), "err = %v, want a *errs.Interrupted", err)
	assert.Equal(t, errs.StatusTimeout, status)
}
