// Package evolution implements Differential Evolution over a bounded box.
//
// Two engines are provided: Classic (DE/rand/1/bin) and Guided, which adapts
// mutation direction and magnitude to the spread of the population and prunes
// near-duplicate individuals. Both keep the population in normalized
// coordinates and produce one optimization.Generation per step. An engine
// owns its random stream and is not safe for concurrent use; independent runs
// need independent engines.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand"

	"go.uber.org/zap"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// ErrExhausted is returned by Next once every generation has been produced.
var ErrExhausted = optimization.ErrExhausted

// Engine produces generations of a single run.
type Engine interface {
	// Next runs exactly one generation and returns its result.
	Next(ctx context.Context) (optimization.Generation, error)

	// Generations is the lazy sequence of the remaining generations. A
	// failing generation yields its error and ends the sequence.
	Generations(ctx context.Context) iter.Seq2[optimization.Generation, error]

	// Best returns the optimum found so far in true coordinates.
	Best() optimization.Solution
}

// Strategies lists the accepted strategy names.
func Strategies() []string {
	return []string{StrategyClassic, StrategyGuided}
}

// New creates the engine registered under strategy.
func New(strategy string, cfg Config) (Engine, error) {
	switch strategy {
	case StrategyClassic, "":
		engine, err := NewClassic(cfg)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case StrategyGuided, "diversity-guided":
		engine, err := NewGuided(cfg)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, unknownStrategy(strategy)
	}
}

// Validate checks cfg for the named strategy without sampling a population.
func Validate(strategy string, cfg Config) error {
	switch strategy {
	case StrategyClassic, "":
		if err := cfg.Validate(); err != nil {
			return validationError(err, "evolution.classic")
		}
	case StrategyGuided, "diversity-guided":
		if err := cfg.ValidateGuided(); err != nil {
			return validationError(err, "evolution.guided")
		}
	default:
		return unknownStrategy(strategy)
	}
	return nil
}

func unknownStrategy(strategy string) error {
	return optimization.ConfigErrorf("unknown strategy %q", strategy).WithOperation("evolution.New")
}

// Evolve is the one-call form of New followed by Generations. A construction
// error is yielded as the only element.
func Evolve(ctx context.Context, strategy string, cfg Config) iter.Seq2[optimization.Generation, error] {
	engine, err := New(strategy, cfg)
	if err != nil {
		return func(yield func(optimization.Generation, error) bool) {
			yield(optimization.Generation{}, err)
		}
	}
	return engine.Generations(ctx)
}

// optimum tracks the best individual seen in the run. Its value never
// increases.
type optimum struct {
	index int
	point []float64
	value float64
}

func (o *optimum) offer(index int, point []float64, value float64) bool {
	if !(value < o.value) {
		return false
	}
	o.index = index
	o.point = point
	o.value = value
	return true
}

// base holds the state shared by both engines.
type base struct {
	cfg     Config
	rng     *rand.Rand
	sampler Sampler
	pop     *population
	best    optimum
	logger  *zap.Logger

	generation int
	err        error

	mask   []bool
	mutant []float64
	trial  []float64
}

func newBase(cfg Config, name string) (*base, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = NewRandSampler(rng)
	}

	pop, err := newPopulation(cfg.PopulationSize, cfg.Bounds, cfg.Objective, rng)
	if err != nil {
		return nil, err
	}

	d := cfg.Bounds.Dimensions()
	b := &base{
		cfg:     cfg,
		rng:     rng,
		sampler: sampler,
		pop:     pop,
		logger:  logger.Named(name),
		mask:    make([]bool, d),
		mutant:  make([]float64, d),
		trial:   make([]float64, d),
	}

	i := pop.best()
	b.best = optimum{index: i, point: cfg.Bounds.Denormalize(nil, pop.row(i)), value: pop.fitness[i]}

	b.logger.Debug("Initialized population",
		zap.Int("population_size", cfg.PopulationSize),
		zap.Int("dimensions", d),
		zap.Int64("seed", cfg.Seed),
		zap.Float64("best_value", b.best.value),
	)
	return b, nil
}

// start checks whether another generation may run.
func (b *base) start(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if b.generation >= b.cfg.IterationCount {
		return ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.pop.evaluations = 0
	return nil
}

// fail records a fatal error; every later Next returns it again.
func (b *base) fail(err error) error {
	b.err = err
	b.logger.Debug("Generation failed", zap.Int("generation", b.generation), zap.Error(err))
	return err
}

// selectTrial runs greedy selection for target j.
func (b *base) selectTrial(j int, trial, point []float64, f float64) {
	if b.pop.accept(j, trial, f) {
		b.best.offer(j, point, f)
	}
}

// publish finishes a generation and builds its result.
func (b *base) publish(replaced int) optimization.Generation {
	b.pop.commit()

	g := optimization.Generation{
		Index:       b.generation,
		Point:       append([]float64(nil), b.best.point...),
		Value:       b.best.value,
		Diversity:   Diversity(b.pop.current),
		Evaluations: b.pop.evaluations,
		Replaced:    replaced,
	}
	b.generation++

	b.logger.Debug("Generation complete",
		zap.Int("generation", g.Index),
		zap.Float64("best_value", g.Value),
		zap.Float64("diversity", g.Diversity),
		zap.Int("evaluations", g.Evaluations),
		zap.Int("replaced", g.Replaced),
	)
	return g
}

// Best implements Engine.
func (b *base) Best() optimization.Solution {
	return optimization.Solution{
		Parameters: append([]float64(nil), b.best.point...),
		Value:      b.best.value,
	}
}

// generations adapts a Next function into a lazy sequence.
func generations(ctx context.Context, next func(context.Context) (optimization.Generation, error)) iter.Seq2[optimization.Generation, error] {
	return func(yield func(optimization.Generation, error) bool) {
		for {
			g, err := next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(optimization.Generation{}, err)
				return
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}

// validationError tags a configuration error with the engine name.
func validationError(err error, component string) error {
	if e, ok := optimization.IsOptimizationError(err); ok {
		return e.WithComponent(component)
	}
	return fmt.Errorf("%s: %w", component, err)
}
