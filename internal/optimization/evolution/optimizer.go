package evolution

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// Optimizer runs an engine to completion behind the optimization.Optimizer
// interface. It is safe to query from other goroutines while Optimize runs.
type Optimizer struct {
	// Configuration defaults; OptimizerConfig fields override them when set
	base Config

	mu           sync.RWMutex
	bestSolution *optimization.Solution
	history      []optimization.Generation

	// For cancellation
	cancel context.CancelFunc
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// NewOptimizer creates an Optimizer with the given engine defaults.
func NewOptimizer(defaults Config) *Optimizer {
	return &Optimizer{base: defaults}
}

// Optimize runs every generation of the configured engine.
func (o *Optimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	cfg := o.Resolve(config)

	engine, err := New(config.Strategy, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.history = nil
	o.mu.Unlock()
	defer cancel()

	iterations := 0
	for g, err := range engine.Generations(ctx) {
		if err != nil {
			return nil, err
		}
		iterations++

		o.mu.Lock()
		if !config.DiscardHistory {
			o.history = append(o.history, g)
		}
		o.bestSolution = &optimization.Solution{Parameters: g.Point, Value: g.Value}
		o.mu.Unlock()

		if config.Verbose && cfg.Logger != nil {
			cfg.Logger.Info("Generation",
				zap.Int("generation", g.Index),
				zap.Float64("value", g.Value),
				zap.Float64("diversity", g.Diversity),
			)
		}

		if config.OnGeneration != nil {
			if err := config.OnGeneration(g); err != nil {
				return nil, optimization.WrapErrorf(err, "generation %d observer failed", g.Index).
					WithOperation("Optimizer.Optimize").WithComponent("evolution")
			}
		}
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	best := engine.Best()
	return &optimization.OptimizationResult{
		BestSolution: &best,
		History:      o.history,
		Iterations:   iterations,
		Converged:    iterations == cfg.IterationCount,
	}, nil
}

// GetBestSolution returns the best solution found so far
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bestSolution
}

// GetHistory returns the completed generations
func (o *Optimizer) GetHistory() []optimization.Generation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.Generation(nil), o.history...)
}

// Stop stops the optimization process before its next generation
func (o *Optimizer) Stop() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Validate reports whether config would start a run.
func (o *Optimizer) Validate(config optimization.OptimizerConfig) error {
	return Validate(config.Strategy, o.Resolve(config))
}

// Resolve overlays the per-run settings of config onto the defaults.
func (o *Optimizer) Resolve(config optimization.OptimizerConfig) Config {
	cfg := o.base
	if config.Objective != nil {
		cfg.Objective = config.Objective
	}
	if len(config.Bounds) > 0 {
		cfg.Bounds = config.Bounds
	}
	if config.MaxIterations > 0 {
		cfg.IterationCount = config.MaxIterations
	}
	if config.PopulationSize > 0 {
		cfg.PopulationSize = config.PopulationSize
	}
	if config.Mutation != nil {
		cfg.Mutation = *config.Mutation
	}
	if config.Crossover != nil {
		cfg.Crossover = *config.Crossover
	}
	if config.Neighbors > 0 {
		cfg.Neighbors = config.Neighbors
	}
	cfg.Seed = config.RandomSeed
	return cfg
}
