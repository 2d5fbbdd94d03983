package evolution

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// sphere is x1^2 + ... + xn^2 with its minimum at the origin
func sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// doubleWell is x^4 - 2x^2 with minima -1 at x = -1 and x = 1
func doubleWell(x []float64) (float64, error) {
	return math.Pow(x[0], 4) - 2*x[0]*x[0], nil
}

// rastrigin has many local minima and a global minimum of 0 at the origin
func rastrigin(x []float64) (float64, error) {
	sum := 10.0 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

func square(n int, lo, hi float64) optimization.Bounds {
	b := make(optimization.Bounds, n)
	for i := range b {
		b[i] = [2]float64{lo, hi}
	}
	return b
}

func testConfig(objective optimization.ObjectiveFunction, bounds optimization.Bounds, seed int64, iterations int) Config {
	cfg := DefaultConfig()
	cfg.Objective = objective
	cfg.Bounds = bounds
	cfg.Seed = seed
	cfg.IterationCount = iterations
	return cfg
}

// collect drains an engine and fails the test on any error
func collect(t *testing.T, engine Engine) []optimization.Generation {
	t.Helper()

	var out []optimization.Generation
	for g, err := range engine.Generations(context.Background()) {
		require.NoError(t, err)
		out = append(out, g)
	}
	return out
}

// assertRunInvariants checks containment, monotonicity and diversity sign
func assertRunInvariants(t *testing.T, bounds optimization.Bounds, gens []optimization.Generation) {
	t.Helper()

	prev := math.Inf(1)
	for i, g := range gens {
		require.Equal(t, i, g.Index, "generations must be numbered in order")
		require.True(t, bounds.Contains(g.Point), "generation %d point %v escapes bounds", i, g.Point)
		require.LessOrEqual(t, g.Value, prev, "optimum regressed at generation %d", i)
		require.GreaterOrEqual(t, g.Diversity, 0.0)
		prev = g.Value
	}
}

// assertFitnessConsistent re-evaluates the population and compares with the
// cached fitness vector
func assertFitnessConsistent(t *testing.T, pop *population) {
	t.Helper()

	for i := 0; i < pop.size(); i++ {
		require.True(t, inUnitBox(pop.row(i)), "individual %d left the unit box: %v", i, pop.row(i))
		f, err := pop.objective(pop.bounds.Denormalize(nil, pop.row(i)))
		require.NoError(t, err)
		require.Equal(t, f, pop.fitness[i], "fitness of individual %d is stale", i)
	}
}

func inUnitBox(x []float64) bool {
	for _, v := range x {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// recordingSampler wraps a Sampler and keeps every draw
type recordingSampler struct {
	inner Sampler
	calls [][3]int // n, k, exclude
	draws [][]int
}

func (s *recordingSampler) Sample(n, k, exclude int) []int {
	out := s.inner.Sample(n, k, exclude)
	s.calls = append(s.calls, [3]int{n, k, exclude})
	s.draws = append(s.draws, out)
	return out
}

// stubSource replays fixed uniform draws
type stubSource struct {
	floats []float64
	intn   int
	nextF  int
	intns  int
}

func (s *stubSource) Float64() float64 {
	v := s.floats[s.nextF%len(s.floats)]
	s.nextF++
	return v
}

func (s *stubSource) Intn(n int) int {
	s.intns++
	return s.intn % n
}
