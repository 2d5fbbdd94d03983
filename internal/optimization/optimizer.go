package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process to completion
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns one entry per completed generation, or nothing
	// when the run discards its history
	GetHistory() []Generation

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Bounds for each dimension [min, max]
	Bounds Bounds

	// Strategy selects the engine ("classic" or "dg")
	Strategy string

	// Maximum number of generations
	MaxIterations int

	// Population size (at least 4)
	PopulationSize int

	// Differential weight; nil keeps the default
	Mutation *float64

	// Crossover probability; nil keeps the default. Zero is a valid setting
	// that adopts exactly one mutant coordinate per trial.
	Crossover *float64

	// Neighbors is the near-set size of the diversity-guided engine
	Neighbors int

	// Random seed for reproducibility
	RandomSeed int64

	// OnGeneration, when set, observes every completed generation. A non-nil
	// error aborts the run.
	OnGeneration func(Generation) error

	// DiscardHistory stops the optimizer from retaining every generation.
	// The result then carries an empty History.
	DiscardHistory bool

	// Verbose logging
	Verbose bool
}

// ObjectiveFunction defines the function to be minimized. It receives a point
// in true (denormalized) coordinates.
type ObjectiveFunction func([]float64) (float64, error)

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// Generation is the result published after one full generation.
type Generation struct {
	// Index is the zero-based generation number
	Index int
	// Point is the optimum in true coordinates
	Point []float64
	// Value is the objective value at Point
	Value float64
	// Diversity is the mean distance of the population from its centroid,
	// measured in normalized space and divided by the dimension count
	Diversity float64
	// Evaluations is the number of objective calls spent in this generation
	Evaluations int
	// Replaced counts individuals evicted by merge-pruning
	Replaced int
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Generation
	Iterations   int
	Converged    bool
}
