package benchmark

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteKnownMinima(t *testing.T) {
	for _, p := range Suite(DefaultDimensions...) {
		t.Run(p.Name, func(t *testing.T) {
			require.NotNil(t, p.Objective)
			require.NotZero(t, p.Dimensions())
			assert.Positive(t, p.Iterations)

			for _, m := range p.Minima {
				require.Len(t, m, p.Dimensions())
				assert.True(t, p.Bounds.Contains(m), "minimizer %v outside bounds", m)

				v, err := p.Objective(m)
				require.NoError(t, err)
				assert.InDelta(t, p.MinimumValue, v, 1e-4)
				assert.Zero(t, p.PointError(m))
			}
		})
	}
}

func TestSuiteNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Suite(2, 5, 10) {
		assert.False(t, seen[p.Name], "duplicate problem %s", p.Name)
		seen[p.Name] = true
	}
	assert.Len(t, seen, 7+3*4)
}

func TestPointError(t *testing.T) {
	p, err := Lookup("two_global")
	require.NoError(t, err)

	assert.InDelta(t, 0.1, p.PointError([]float64{0.9}), 1e-12)
	assert.InDelta(t, 0.2, p.PointError([]float64{-1.2}), 1e-12, "nearest of several minima")

	ring, err := Lookup("multiple_global")
	require.NoError(t, err)
	assert.True(t, math.IsInf(ring.PointError([]float64{1, 0}), 1))
	assert.InDelta(t, 0.0, ring.ValueError(-1.7025), 1e-12)
}

func TestValueError(t *testing.T) {
	p := Problem{MinimumValue: -1}
	assert.InDelta(t, 0.5, p.ValueError(-0.5), 1e-12)
	assert.InDelta(t, 0.5, p.ValueError(-1.5), 1e-12)

	p.MinimumValue = math.NaN()
	assert.True(t, math.IsInf(p.ValueError(3), 1))
}

func TestMultipleGlobalOrigin(t *testing.T) {
	p, err := Lookup("multiple_global")
	require.NoError(t, err)

	v, err := p.Objective([]float64{0, 0})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		dims    int
		wantErr bool
	}{
		{name: "one.parabola", dims: 2},
		{name: "one.transposed_parabola", dims: 3},
		{name: "two_local.single_dimension", dims: 1},
		{name: "rastrigin-7d", dims: 7},
		{name: "ackley-1d", dims: 1},
		{name: "rastrigin", wantErr: true},
		{name: "rastrigin-0d", wantErr: true},
		{name: "nope-2d", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lookup(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.dims, p.Dimensions())
		})
	}
}

func TestScalableFunctions(t *testing.T) {
	tests := []struct {
		name string
		f    func([]float64) (float64, error)
		x    []float64
		want float64
	}{
		{name: "sphere", f: Sphere, x: []float64{1, 2, 3}, want: 14},
		{name: "rosenbrock at optimum", f: Rosenbrock, x: []float64{1, 1, 1}, want: 0},
		{name: "rosenbrock origin", f: Rosenbrock, x: []float64{0, 0}, want: 1},
		{name: "rastrigin origin", f: Rastrigin, x: []float64{0, 0}, want: 0},
		{name: "rastrigin integer lattice", f: Rastrigin, x: []float64{1, 0}, want: 1},
		{name: "ackley origin", f: Ackley, x: []float64{0, 0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	assert.Nil(t, Scalable(0))
}
