package portfolio

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcgkit/solver/internal/kernel/config"
	"github.com/lcgkit/solver/internal/kernel/problem"
	"github.com/lcgkit/solver/internal/kernel/search"
	"github.com/lcgkit/solver/internal/kernel/store"
)

func diverseStrategies() []Strategy {
	return []Strategy{
		{Name: "positive-first", Kind: Activity, VariableDecay: 0.95, PhaseSaving: true, InitialPhase: store.True},
		{Name: "negative-first", Kind: Activity, VariableDecay: 0.999, PhaseSaving: true, InitialPhase: store.False},
		{Name: "learning-rate", Kind: LearningRate, PhaseSaving: true, InitialPhase: store.Unknown},
	}
}

func TestRunSatisfiable(t *testing.T) {
	recipe := func(b *problem.Builder) {
		a := b.NewVariable(store.KindBool, 0, 1, "a")
		c := b.NewVariable(store.KindBool, 0, 1, "c")
		require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(a), store.PositiveLiteral(c)}))
	}

	result, err := Run(context.Background(), config.Default(), zerolog.Nop(), recipe, diverseStrategies(), search.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, search.StatusSatisfiable, result.Status)
	assert.NotEmpty(t, result.Strategy)
}

func TestRunUnsatisfiable(t *testing.T) {
	recipe := func(b *problem.Builder) {
		a := b.NewVariable(store.KindBool, 0, 1, "a")
		b2 := b.NewVariable(store.KindBool, 0, 1, "b")
		require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(a), store.PositiveLiteral(b2)}))
		require.NoError(t, b.AddClause([]store.Literal{store.NegativeLiteral(a), store.NegativeLiteral(b2)}))
		require.NoError(t, b.AddClause([]store.Literal{store.PositiveLiteral(a)}))
	}

	result, err := Run(context.Background(), config.Default(), zerolog.Nop(), recipe, diverseStrategies(), search.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, search.StatusUnsatisfiable, result.Status)
}

func TestRunForwardStrategyOverTimepoints(t *testing.T) {
	recipe := func(b *problem.Builder) {
		start := b.NewVariable(store.KindInt, 0, 10, "start")
		end := b.NewVariable(store.KindInt, 0, 10, "end")
		enabled := b.NewVariable(store.KindBool, 1, 1, "enabled")
		b.AddSTNEdge(start, end, -1, store.PositiveLiteral(enabled))
	}

	strategies := []Strategy{
		{Name: "forward", Kind: Forward},
	}

	result, err := Run(context.Background(), config.Default(), zerolog.Nop(), recipe, strategies, search.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, search.StatusSatisfiable, result.Status)
}

func TestRunNoStrategies(t *testing.T) {
	_, err := Run(context.Background(), config.Default(), zerolog.Nop(), func(*problem.Builder) {}, nil, search.DefaultOptions)
	assert.Error(t, err)
}

func TestRunContextCancellation(t *testing.T) {
	recipe := func(b *problem.Builder) {
		b.NewVariable(store.KindBool, 0, 1, "a")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, config.Default(), zerolog.Nop(), recipe, diverseStrategies(), search.DefaultOptions)
	require.NoError(t, err)
	// Every worker's very first search iteration observes the already-fired
	// interrupt (spec §5) and returns promptly without deciding anything;
	// none of them reaches a definite status.
	assert.Equal(t, search.StatusUnknown, result.Status)
}
