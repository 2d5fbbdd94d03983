package evolution

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

func TestOptimizer(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
	}{
		{name: "classic", strategy: StrategyClassic},
		{name: "diversity guided", strategy: StrategyGuided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := NewOptimizer(DefaultConfig())

			observed := 0
			config := optimization.OptimizerConfig{
				Objective:      sphere,
				Bounds:         optimization.Bounds{{-5, 5}, {-5, 5}},
				Strategy:       tt.strategy,
				MaxIterations:  50,
				PopulationSize: 12,
				RandomSeed:     42,
				OnGeneration: func(g optimization.Generation) error {
					assert.Equal(t, observed, g.Index)
					observed++
					return nil
				},
			}

			result, err := opt.Optimize(context.Background(), config)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, 50, observed)
			assert.Equal(t, 50, result.Iterations)
			assert.True(t, result.Converged)
			assert.Len(t, result.History, 50)

			require.NotNil(t, result.BestSolution)
			last := result.History[len(result.History)-1]
			assert.Equal(t, last.Value, result.BestSolution.Value)
			assert.Equal(t, last.Point, result.BestSolution.Parameters)

			best := opt.GetBestSolution()
			require.NotNil(t, best)
			assert.Equal(t, last.Value, best.Value)
			assert.Len(t, opt.GetHistory(), 50)
		})
	}
}

func TestOptimizerObserverError(t *testing.T) {
	errStop := errors.New("sink full")
	opt := NewOptimizer(DefaultConfig())

	_, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     sphere,
		Bounds:        optimization.Bounds{{-1, 1}},
		MaxIterations: 10,
		OnGeneration: func(g optimization.Generation) error {
			if g.Index == 2 {
				return errStop
			}
			return nil
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errStop)
	assert.Len(t, opt.GetHistory(), 3)
}

func TestOptimizerStop(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	_, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     sphere,
		Bounds:        optimization.Bounds{{-1, 1}},
		MaxIterations: 100,
		OnGeneration: func(g optimization.Generation) error {
			if g.Index == 4 {
				opt.Stop()
			}
			return nil
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, opt.GetHistory(), 5)
}

func TestOptimizerInvalidConfig(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	_, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective: sphere,
		Bounds:    optimization.Bounds{{-1, 1}},
		Strategy:  "annealing",
	})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)

	_, err = opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective: sphere,
		Strategy:  StrategyGuided,
	})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)

	assert.ErrorIs(t, opt.Validate(optimization.OptimizerConfig{Objective: sphere, Strategy: StrategyGuided}), optimization.ErrInvalidConfig)
	assert.NoError(t, opt.Validate(optimization.OptimizerConfig{Objective: sphere, Bounds: optimization.Bounds{{-1, 1}}, Strategy: StrategyGuided}))

	// Stop before any run is a no-op.
	assert.NotPanics(t, NewOptimizer(DefaultConfig()).Stop)
}

func TestOptimizerResolve(t *testing.T) {
	defaults := DefaultConfig()
	defaults.Neighbors = 4
	opt := NewOptimizer(defaults)

	cfg := opt.Resolve(optimization.OptimizerConfig{
		Objective:      sphere,
		Bounds:         optimization.Bounds{{0, 1}},
		MaxIterations:  7,
		PopulationSize: 9,
		Mutation:       ptr(0.5),
		Crossover:      ptr(0.9),
		RandomSeed:     3,
	})

	assert.Equal(t, 7, cfg.IterationCount)
	assert.Equal(t, 9, cfg.PopulationSize)
	assert.Equal(t, 0.5, cfg.Mutation)
	assert.Equal(t, 0.9, cfg.Crossover)
	assert.Equal(t, 4, cfg.Neighbors)
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Equal(t, DefaultDiversityHigh, cfg.DiversityHigh)

	// Explicit zeros are settings, not omissions.
	cfg = opt.Resolve(optimization.OptimizerConfig{Mutation: ptr(0.0), Crossover: ptr(0.0)})
	assert.Zero(t, cfg.Mutation)
	assert.Zero(t, cfg.Crossover)

	cfg = opt.Resolve(optimization.OptimizerConfig{})
	assert.Equal(t, DefaultMutation, cfg.Mutation)
	assert.Equal(t, DefaultCrossover, cfg.Crossover)
}

func TestOptimizerZeroCrossover(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     sphere,
		Bounds:        square(3, -1, 1),
		MaxIterations: 20,
		Crossover:     ptr(0.0),
		RandomSeed:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Iterations)
}

func TestOptimizerDiscardHistory(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	seen := 0
	result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:      sphere,
		Bounds:         square(2, -1, 1),
		MaxIterations:  200,
		RandomSeed:     9,
		DiscardHistory: true,
		OnGeneration: func(optimization.Generation) error {
			seen++
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, seen)
	assert.Equal(t, 200, result.Iterations)
	assert.True(t, result.Converged)
	assert.Empty(t, result.History)
	assert.Empty(t, opt.GetHistory())
	require.NotNil(t, opt.GetBestSolution())
	assert.Equal(t, result.BestSolution.Value, opt.GetBestSolution().Value)
}

func TestOptimizerLargeIterationCountAllocatesLazily(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	_, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     sphere,
		Bounds:        square(2, -1, 1),
		MaxIterations: 10_000_000,
		OnGeneration: func(g optimization.Generation) error {
			opt.Stop()
			return nil
		},
	})
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, opt.GetHistory(), 1)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(8<<20),
		"a run stopped after one generation must not pay for the requested iteration count")
}

func ptr(v float64) *float64 { return &v }
