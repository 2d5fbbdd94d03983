package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/copyleftdev/diffevo/internal/benchmark"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
	"github.com/copyleftdev/diffevo/internal/store"
)

// runFlags are shared by run and suite.
type runFlags struct {
	seed       int64
	attempts   int
	iterations int
	popSize    int
	mutation   float64
	crossover  float64
	neighbors  int
	parallel   int
	logDir     string
	storeKind  string
	storePath  string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.seed, "seed", 0, "Base seed for attempt seeds (random when unset)")
	fs.IntVar(&f.attempts, "attempts", 1, "Attempts per problem")
	fs.IntVar(&f.iterations, "iterations", 0, "Generations per attempt (0 uses the problem's recommendation)")
	fs.IntVar(&f.popSize, "pop", evolution.DefaultPopulationSize, "Population size")
	fs.Float64Var(&f.mutation, "mut", evolution.DefaultMutation, "Differential weight")
	fs.Float64Var(&f.crossover, "crossp", evolution.DefaultCrossover, "Crossover probability")
	fs.IntVar(&f.neighbors, "neighbors", evolution.DefaultNeighbors, "Near-set size of the diversity-guided engine")
	fs.IntVar(&f.parallel, "parallel", 1, "Attempts run concurrently")
	fs.StringVar(&f.logDir, "log-dir", "logs", "Directory for CSV iteration logs (empty disables them)")
	fs.StringVar(&f.storeKind, "store", "", "Also persist runs to a store backend (sqlite)")
	fs.StringVar(&f.storePath, "store-path", "", "SQLite database path (defaults to STORE_SQLITE_PATH)")
}

// engineConfig starts from the environment defaults and applies the flags
// the user set.
func (f *runFlags) engineConfig(cmd *cobra.Command) evolution.Config {
	cfg := defaults.Engine()
	fs := cmd.Flags()
	if fs.Changed("pop") {
		cfg.PopulationSize = f.popSize
	}
	if fs.Changed("mut") {
		cfg.Mutation = f.mutation
	}
	if fs.Changed("crossp") {
		cfg.Crossover = f.crossover
	}
	if fs.Changed("neighbors") {
		cfg.Neighbors = f.neighbors
	}
	cfg.Logger = engineLog
	return cfg
}

func (f *runFlags) baseSeed(cmd *cobra.Command) int64 {
	if cmd.Flags().Changed("seed") {
		return f.seed
	}
	seed := benchmark.RandomSeed()
	logger.Info("Using random seed", map[string]interface{}{"seed": seed})
	return seed
}

func (f *runFlags) logDirectory(cmd *cobra.Command) string {
	if cmd.Flags().Changed("log-dir") {
		return f.logDir
	}
	return defaults.Logging.Dir
}

// openStore returns nil when no store was requested.
func (f *runFlags) openStore(ctx context.Context) (store.Store, error) {
	if f.storeKind == "" {
		return nil, nil
	}
	path := f.storePath
	if path == "" {
		path = defaults.Store.SQLitePath
	}
	if f.storeKind == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	st, err := store.NewStore(f.storeKind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("open %s store: %w", f.storeKind, err)
	}
	return st, nil
}

func (f *runFlags) runner(cmd *cobra.Command, strategy string, st store.Store) *benchmark.Runner {
	return &benchmark.Runner{
		Strategy:    strategy,
		Config:      f.engineConfig(cmd),
		Attempts:    f.attempts,
		Iterations:  f.iterations,
		Parallelism: f.parallel,
		Open:        recorders(f.logDirectory(cmd), st),
		Logger:      engineLog,
	}
}

// recorders opens a CSV log per attempt and, with a store, a run record.
func recorders(logDir string, st store.Store) benchmark.OpenFunc {
	return func(ctx context.Context, a benchmark.Attempt, p benchmark.Problem) (store.Recorder, error) {
		var recs []store.Recorder
		if logDir != "" {
			log, err := store.CreateCSVLog(store.LogPath(logDir, p.Name, a.Strategy, a.Index), p.Dimensions())
			if err != nil {
				return nil, err
			}
			recs = append(recs, log)
		}
		if st != nil {
			run := store.Run{
				ID:         uuid.NewString(),
				Problem:    p.Name,
				Strategy:   a.Strategy,
				Attempt:    a.Index,
				Seed:       a.Seed,
				Dimensions: p.Dimensions(),
				CreatedAt:  time.Now(),
			}
			if err := st.CreateRun(ctx, run); err != nil {
				_ = store.Tee(recs...).Close()
				return nil, err
			}
			recs = append(recs, store.RunRecorder(st, run.ID))
		}
		return store.Tee(recs...), nil
	}
}

func printSummaries(w io.Writer, summaries []benchmark.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBLEM\tATTEMPT\tSEED\tVALUE\tPOINT ERROR\tVALUE ERROR\tPOINT")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%v\n",
			s.Problem, s.Index, s.Seed,
			formatFloat(s.Best.Value), formatFloat(s.PointError), formatFloat(s.ValueError),
			s.Best.Parameters)
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
