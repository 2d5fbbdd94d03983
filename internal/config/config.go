package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
		Dir    string `env:"LOG_DIR" envDefault:"logs"`
	}
	Store struct {
		Backend    string `env:"STORE_BACKEND" envDefault:"memory"`
		SQLitePath string `env:"STORE_SQLITE_PATH" envDefault:"data/diffevo.db"`
	}
	Optimization struct {
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"10"`
		// MaxIterations caps the generations a single job may request.
		MaxIterations int `env:"OPT_MAX_ITERATIONS" envDefault:"1000000"`
	}
	Evolution struct {
		Strategy             string  `env:"DE_STRATEGY" envDefault:"classic"`
		Mutation             float64 `env:"DE_MUTATION" envDefault:"0.8"`
		Crossover            float64 `env:"DE_CROSSOVER" envDefault:"0.7"`
		PopulationSize       int     `env:"DE_POPULATION_SIZE" envDefault:"20"`
		Iterations           int     `env:"DE_ITERATIONS" envDefault:"1000"`
		Neighbors            int     `env:"DE_NEIGHBORS" envDefault:"3"`
		DiversityLow         float64 `env:"DE_DIVERSITY_LOW" envDefault:"0.005"`
		DiversityHigh        float64 `env:"DE_DIVERSITY_HIGH" envDefault:"0.05"`
		DirectionProbability float64 `env:"DE_DIRECTION_PROBABILITY" envDefault:"0.5"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Development runs log at debug unless a level was chosen explicitly
	if _, set := os.LookupEnv("LOG_LEVEL"); cfg.Environment == "development" && !set {
		cfg.Logging.Level = "debug"
	}

	if cfg.Optimization.WorkerCount < 1 {
		return nil, fmt.Errorf("OPT_WORKER_COUNT must be positive, got %d", cfg.Optimization.WorkerCount)
	}
	if cfg.Optimization.MaxIterations < cfg.Evolution.Iterations {
		return nil, fmt.Errorf("OPT_MAX_ITERATIONS %d is below DE_ITERATIONS %d",
			cfg.Optimization.MaxIterations, cfg.Evolution.Iterations)
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return nil, fmt.Errorf("STORE_SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.Store.Backend)
	}

	return cfg, nil
}

// Engine returns the engine defaults. Objective, bounds and seed are left
// for the caller.
func (c *Config) Engine() evolution.Config {
	ec := evolution.DefaultConfig()
	ec.Mutation = c.Evolution.Mutation
	ec.Crossover = c.Evolution.Crossover
	ec.PopulationSize = c.Evolution.PopulationSize
	ec.IterationCount = c.Evolution.Iterations
	ec.Neighbors = c.Evolution.Neighbors
	ec.DiversityLow = c.Evolution.DiversityLow
	ec.DiversityHigh = c.Evolution.DiversityHigh
	ec.DirectionProbability = c.Evolution.DirectionProbability
	return ec
}
