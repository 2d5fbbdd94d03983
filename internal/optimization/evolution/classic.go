package evolution

import (
	"context"
	"iter"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// Classic implements DE/rand/1/bin.
type Classic struct {
	*base
}

// NewClassic validates cfg, samples and evaluates the initial population.
// Objective errors are returned unmodified.
func NewClassic(cfg Config) (*Classic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, validationError(err, "evolution.classic")
	}
	b, err := newBase(cfg, "evolution.classic")
	if err != nil {
		return nil, err
	}
	return &Classic{base: b}, nil
}

// Next implements Engine. Each target draws three distinct donors from the
// frozen current population; accepted trials only become visible to donor
// sampling in the following generation.
func (e *Classic) Next(ctx context.Context) (optimization.Generation, error) {
	if err := e.start(ctx); err != nil {
		return optimization.Generation{}, err
	}

	pop := e.pop
	pop.begin()

	n := pop.size()
	for j := 0; j < n; j++ {
		donors := e.sampler.Sample(n, 3, j)
		a, b, c := pop.row(donors[0]), pop.row(donors[1]), pop.row(donors[2])

		differentialMutation(e.mutant, a, b, c, e.cfg.Mutation)
		binomialCrossover(e.rng, e.mask, e.cfg.Crossover)
		applyCrossover(e.trial, e.mask, e.mutant, pop.row(j))

		point, f, err := pop.evaluate(e.trial)
		if err != nil {
			return optimization.Generation{}, e.fail(err)
		}
		e.selectTrial(j, e.trial, point, f)
	}

	return e.publish(0), nil
}

// Generations implements Engine.
func (e *Classic) Generations(ctx context.Context) iter.Seq2[optimization.Generation, error] {
	return generations(ctx, e.Next)
}
