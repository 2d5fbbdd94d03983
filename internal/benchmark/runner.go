package benchmark

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/diffevo/internal/optimization"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
	"github.com/copyleftdev/diffevo/internal/store"
)

// MaxSeed bounds generated seeds to [0, MaxSeed).
const MaxSeed = 1_000_000_000

// Attempt identifies one seeded run of a problem. Index counts from 0, as in
// the log file names.
type Attempt struct {
	Problem  string `json:"problem"`
	Strategy string `json:"strategy"`
	Index    int    `json:"attempt"`
	Seed     int64  `json:"seed"`
}

// Summary is the outcome of one attempt.
type Summary struct {
	Attempt
	Best        optimization.Solution `json:"best"`
	PointError  float64               `json:"point_error"`
	ValueError  float64               `json:"value_error"`
	Generations int                   `json:"generations"`
}

// OpenFunc returns the recorder an attempt streams its generations into.
type OpenFunc func(ctx context.Context, attempt Attempt, problem Problem) (store.Recorder, error)

// Runner evaluates one strategy on problems over several attempts.
type Runner struct {
	Strategy string

	// Config supplies the engine parameters. Objective, Bounds, Seed and
	// IterationCount are set per attempt.
	Config evolution.Config

	Attempts int

	// Iterations overrides the problem's recommended generation count.
	Iterations int

	// Parallelism bounds concurrent attempts; values below 1 mean one.
	Parallelism int

	Open   OpenFunc
	Logger *zap.Logger
}

// Seeds derives n attempt seeds from base. The same base always yields the
// same seeds.
func Seeds(base int64, n int) []int64 {
	rng := rand.New(rand.NewSource(base))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int63n(MaxSeed)
	}
	return seeds
}

// RandomSeed draws a fresh seed in [0, MaxSeed).
func RandomSeed() int64 {
	return rand.Int63n(MaxSeed)
}

// Run executes every attempt on p. Summaries are ordered by attempt.
func (r *Runner) Run(ctx context.Context, p Problem, baseSeed int64) ([]Summary, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	seeds := Seeds(baseSeed, attempts)
	summaries := make([]Summary, attempts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallelism, 1))
	for i, seed := range seeds {
		attempt := Attempt{Problem: p.Name, Strategy: r.Strategy, Index: i, Seed: seed}
		g.Go(func() error {
			summary, err := r.attempt(gctx, p, attempt)
			if err != nil {
				return fmt.Errorf("%s attempt %d: %w", p.Name, attempt.Index, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// RunSuite runs every problem in order, deriving each problem's base seed
// from baseSeed.
func (r *Runner) RunSuite(ctx context.Context, problems []Problem, baseSeed int64) ([]Summary, error) {
	seeds := Seeds(baseSeed, len(problems))
	var all []Summary
	for i, p := range problems {
		summaries, err := r.Run(ctx, p, seeds[i])
		if err != nil {
			return all, err
		}
		all = append(all, summaries...)
	}
	return all, nil
}

func (r *Runner) attempt(ctx context.Context, p Problem, attempt Attempt) (summary Summary, err error) {
	logger := r.logger().With(
		zap.String("problem", p.Name),
		zap.Int("attempt", attempt.Index),
		zap.Int64("seed", attempt.Seed),
	)

	cfg := r.Config
	cfg.Objective = p.Objective
	cfg.Bounds = p.Bounds
	cfg.Seed = attempt.Seed
	cfg.IterationCount = p.Iterations
	if r.Iterations > 0 {
		cfg.IterationCount = r.Iterations
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	engine, err := evolution.New(r.Strategy, cfg)
	if err != nil {
		return Summary{}, err
	}

	recorder, err := r.open(ctx, attempt, p)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if cerr := recorder.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	summary = Summary{Attempt: attempt}
	for gen, err := range engine.Generations(ctx) {
		if err != nil {
			return Summary{}, err
		}
		rec := store.Record{
			Iteration:  gen.Index + 1,
			Point:      gen.Point,
			Value:      gen.Value,
			Error:      p.PointError(gen.Point),
			ValueError: p.ValueError(gen.Value),
			Diversity:  gen.Diversity,
		}
		if err := recorder.Record(ctx, rec); err != nil {
			return Summary{}, err
		}
		summary.Generations++
	}

	summary.Best = engine.Best()
	summary.PointError = p.PointError(summary.Best.Parameters)
	summary.ValueError = p.ValueError(summary.Best.Value)

	logger.Info("Attempt finished",
		zap.Float64s("point", summary.Best.Parameters),
		zap.Float64("value", summary.Best.Value),
		zap.Float64("point_error", summary.PointError),
		zap.Float64("value_error", summary.ValueError),
	)
	return summary, nil
}

func (r *Runner) open(ctx context.Context, attempt Attempt, p Problem) (store.Recorder, error) {
	if r.Open == nil {
		return discard{}, nil
	}
	return r.Open(ctx, attempt, p)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

type discard struct{}

func (discard) Record(context.Context, store.Record) error { return nil }
func (discard) Close() error                                { return nil }
