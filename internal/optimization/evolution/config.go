package evolution

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

const (
	// StrategyClassic selects DE/rand/1/bin.
	StrategyClassic = "classic"
	// StrategyGuided selects the diversity-guided engine.
	StrategyGuided = "dg"
)

// Default tuning parameters.
const (
	DefaultMutation             = 0.8
	DefaultCrossover            = 0.7
	DefaultPopulationSize       = 20
	DefaultIterationCount       = 1000
	DefaultNeighbors            = 3
	DefaultDiversityLow         = 0.005
	DefaultDiversityHigh        = 0.05
	DefaultDirectionProbability = 0.5

	// minPopulationSize leaves three distinct donors besides the target.
	minPopulationSize = 4

	// mergeFactor scales the mean pairwise distance into the merge radius.
	mergeFactor = 0.01
)

// Config holds everything an engine needs for one run.
type Config struct {
	// Objective is evaluated at denormalized points.
	Objective optimization.ObjectiveFunction

	// Bounds defines the search box; its length is the dimension count.
	Bounds optimization.Bounds

	// Seed initializes the run's private random stream.
	Seed int64

	// Mutation is the differential weight.
	Mutation float64

	// Crossover is the per-dimension probability of adopting the mutant.
	Crossover float64

	// PopulationSize must be at least 4.
	PopulationSize int

	// IterationCount is the number of generations produced.
	IterationCount int

	// Neighbors is the size of the near set (diversity-guided only).
	Neighbors int

	// DiversityLow and DiversityHigh bound the donor diversity band
	// (diversity-guided only). Below the band the mutation direction is
	// forced to +1, above it to -1.
	DiversityLow  float64
	DiversityHigh float64

	// DirectionProbability is the chance that an individual uses the
	// direction-flip mutation instead of the neighbor-scaled dual mutation
	// (diversity-guided only).
	DirectionProbability float64

	// Sampler draws donor and neighbor indices. Nil uses a RandSampler on the
	// run's random stream.
	Sampler Sampler

	// Logger receives per-generation debug output. Nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with default tuning parameters. Objective and
// Bounds still have to be set.
func DefaultConfig() Config {
	return Config{
		Mutation:             DefaultMutation,
		Crossover:            DefaultCrossover,
		PopulationSize:       DefaultPopulationSize,
		IterationCount:       DefaultIterationCount,
		Neighbors:            DefaultNeighbors,
		DiversityLow:         DefaultDiversityLow,
		DiversityHigh:        DefaultDiversityHigh,
		DirectionProbability: DefaultDirectionProbability,
	}
}

// Validate checks the parameters shared by every engine.
func (c Config) Validate() error {
	const op = "Config.Validate"

	if c.Objective == nil {
		return optimization.ConfigErrorf("objective function is required").WithOperation(op)
	}
	if c.Bounds.Dimensions() == 0 {
		return optimization.ConfigErrorf("at least one bound is required").WithOperation(op)
	}
	for i, pair := range c.Bounds {
		if math.IsNaN(pair[0]) || math.IsNaN(pair[1]) || math.IsInf(pair[0], 0) || math.IsInf(pair[1], 0) {
			return optimization.ConfigErrorf("bound %d is not finite: %v", i, pair).WithOperation(op)
		}
	}
	if c.PopulationSize < minPopulationSize {
		return optimization.ConfigErrorf("population size must be at least %d, got %d",
			minPopulationSize, c.PopulationSize).WithOperation(op)
	}
	if c.IterationCount < 0 {
		return optimization.ConfigErrorf("iteration count must not be negative, got %d", c.IterationCount).WithOperation(op)
	}
	if math.IsNaN(c.Mutation) || math.IsInf(c.Mutation, 0) {
		return optimization.ConfigErrorf("mutation must be finite, got %v", c.Mutation).WithOperation(op)
	}
	if !(c.Crossover >= 0 && c.Crossover <= 1) {
		return optimization.ConfigErrorf("crossover must be in [0,1], got %v", c.Crossover).WithOperation(op)
	}
	return nil
}

// ValidateGuided checks the shared parameters plus the diversity-guided ones.
func (c Config) ValidateGuided() error {
	const op = "Config.ValidateGuided"

	if err := c.Validate(); err != nil {
		return err
	}
	// The donor itself is excluded from its neighbor distances, so N-1
	// distances are partitioned and the far set needs at least one.
	if c.Neighbors < 1 || c.Neighbors >= c.PopulationSize-1 {
		return optimization.ConfigErrorf("neighbors must be in [1, %d), got %d",
			c.PopulationSize-1, c.Neighbors).WithOperation(op)
	}
	if c.DiversityLow > c.DiversityHigh {
		return optimization.ConfigErrorf("diversity low %v exceeds diversity high %v",
			c.DiversityLow, c.DiversityHigh).WithOperation(op)
	}
	if !(c.DirectionProbability >= 0 && c.DirectionProbability <= 1) {
		return optimization.ConfigErrorf("direction probability must be in [0,1], got %v",
			c.DirectionProbability).WithOperation(op)
	}
	return nil
}
