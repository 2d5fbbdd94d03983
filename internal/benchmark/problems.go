// Package benchmark provides test problems with known optima and a runner
// that evaluates an engine on them over several seeded attempts.
package benchmark

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// DefaultIterations is used for problems without a recommendation.
const DefaultIterations = 100

// Problem is a bounded minimization problem with a known answer.
type Problem struct {
	Name      string
	Bounds    optimization.Bounds
	Objective optimization.ObjectiveFunction

	// Minima lists every global minimizer. Empty when they are not isolated
	// points.
	Minima [][]float64

	// MinimumValue is NaN when unknown.
	MinimumValue float64

	// Iterations is the recommended generation count.
	Iterations int
}

// Dimensions returns the problem dimension.
func (p Problem) Dimensions() int {
	return p.Bounds.Dimensions()
}

// PointError is the Euclidean distance from point to the nearest known
// minimizer, or +Inf when none is known.
func (p Problem) PointError(point []float64) float64 {
	best := math.Inf(1)
	for _, m := range p.Minima {
		if len(m) != len(point) {
			continue
		}
		best = math.Min(best, floats.Distance(point, m, 2))
	}
	return best
}

// ValueError is |value - minimum|, or +Inf when the minimum is unknown.
func (p Problem) ValueError(value float64) float64 {
	if math.IsNaN(p.MinimumValue) {
		return math.Inf(1)
	}
	return math.Abs(value - p.MinimumValue)
}

// Suite returns the fixed problems followed by the scalable functions at
// each requested dimension.
func Suite(dims ...int) []Problem {
	problems := fixed()
	for _, d := range dims {
		problems = append(problems, Scalable(d)...)
	}
	return problems
}

// DefaultDimensions are the dimensions of the scalable functions in the
// default suite.
var DefaultDimensions = []int{2, 5}

// Lookup finds a problem by name. Scalable functions accept any dimension
// through the "<name>-<d>d" form.
func Lookup(name string) (Problem, error) {
	for _, p := range fixed() {
		if p.Name == name {
			return p, nil
		}
	}

	var d int
	if i := strings.LastIndex(name, "-"); i > 0 {
		if _, err := fmt.Sscanf(name[i+1:], "%dd", &d); err != nil {
			d = 0
		}
	}
	if d > 0 {
		for _, p := range Scalable(d) {
			if p.Name == name {
				return p, nil
			}
		}
	}
	return Problem{}, fmt.Errorf("unknown problem %q", name)
}

func fixed() []Problem {
	// Stationary points of x^4 - 4.3x^3 + 3x^2 - 3 solve 4x^2 - 12.9x + 6 = 0.
	well := (12.9 + math.Sqrt(12.9*12.9-96)) / 8

	problems := []Problem{
		{
			Name:   "one.parabola",
			Bounds: optimization.Bounds{{-10, 10}, {-10, 10}},
			Objective: func(x []float64) (float64, error) {
				return x[0]*x[0] + x[1]*x[1], nil
			},
			Minima:       [][]float64{{0, 0}},
			MinimumValue: 0,
		},
		{
			Name:   "one.transposed_parabola",
			Bounds: optimization.Bounds{{-20, 20}, {-20, 20}, {-20, 20}},
			Objective: func(x []float64) (float64, error) {
				a, b, c := x[0]-2, x[1]+1, x[2]-6
				return a*a + b*b + c*c, nil
			},
			Minima:       [][]float64{{2, -1, 6}},
			MinimumValue: 0,
		},
		{
			Name:   "two_local.single_dimension",
			Bounds: optimization.Bounds{{-1, 3}},
			Objective: func(x []float64) (float64, error) {
				v := x[0]
				return math.Pow(v, 4) - 4.3*math.Pow(v, 3) + 3*v*v - 3, nil
			},
			Minima:     [][]float64{{well}},
			Iterations: 50,
		},
		{
			Name:   "two_local.mountains",
			Bounds: optimization.Bounds{{-2, 2}, {-2, 2}},
			Objective: func(x []float64) (float64, error) {
				a, b := x[0], x[1]
				return -math.Pow(a, 5) + 2*math.Pow(a, 4) + 4*math.Pow(a, 3) - 2*a*a - 2*a*b - 2*a + b*b, nil
			},
			Minima:       [][]float64{{-1.14498, -1.14498}},
			MinimumValue: -2.24199,
		},
		{
			Name:   "two_global",
			Bounds: optimization.Bounds{{-2, 2}},
			Objective: func(x []float64) (float64, error) {
				v := x[0] * x[0]
				return v*v - 2*v, nil
			},
			Minima:       [][]float64{{-1}, {1}},
			MinimumValue: -1,
			Iterations:   50,
		},
		{
			Name:   "multiple_local",
			Bounds: optimization.Bounds{{-8, 8}, {-8, 8}},
			Objective: func(x []float64) (float64, error) {
				r := x[0]*x[0] + x[1]*x[1]
				return -5 * math.Cos(r) / math.Sqrt(r+1), nil
			},
			Minima:       [][]float64{{0, 0}},
			MinimumValue: -5,
		},
		{
			// The minimizers form a circle of radius ~1.0796.
			Name:   "multiple_global",
			Bounds: optimization.Bounds{{-8, 8}, {-8, 8}},
			Objective: func(x []float64) (float64, error) {
				r := x[0]*x[0] + x[1]*x[1]
				if r == 0 {
					return 0, nil
				}
				return -2 * math.Sin(r) / math.Sqrt(r), nil
			},
			MinimumValue: -1.7025,
			Iterations:   20,
		},
	}

	for i := range problems {
		p := &problems[i]
		if p.Name == "two_local.single_dimension" {
			p.MinimumValue, _ = p.Objective(p.Minima[0])
		}
		if p.Iterations == 0 {
			p.Iterations = DefaultIterations
		}
	}
	return problems
}

// Scalable returns sphere, rosenbrock, rastrigin and ackley in d dimensions.
func Scalable(d int) []Problem {
	if d < 1 {
		return nil
	}
	name := func(base string) string { return fmt.Sprintf("%s-%dd", base, d) }
	zeros := make([]float64, d)
	ones := make([]float64, d)
	for i := range ones {
		ones[i] = 1
	}
	box := func(lo, hi float64) optimization.Bounds {
		b := make(optimization.Bounds, d)
		for i := range b {
			b[i] = [2]float64{lo, hi}
		}
		return b
	}
	iterations := 200 * d

	return []Problem{
		{
			Name:         name("sphere"),
			Bounds:       box(-5, 5),
			Objective:    Sphere,
			Minima:       [][]float64{zeros},
			Iterations:   iterations,
			MinimumValue: 0,
		},
		{
			Name:         name("rosenbrock"),
			Bounds:       box(-5, 5),
			Objective:    Rosenbrock,
			Minima:       [][]float64{ones},
			Iterations:   iterations,
			MinimumValue: 0,
		},
		{
			Name:         name("rastrigin"),
			Bounds:       box(-5.12, 5.12),
			Objective:    Rastrigin,
			Minima:       [][]float64{zeros},
			Iterations:   iterations,
			MinimumValue: 0,
		},
		{
			Name:         name("ackley"),
			Bounds:       box(-32.768, 32.768),
			Objective:    Ackley,
			Minima:       [][]float64{zeros},
			Iterations:   iterations,
			MinimumValue: 0,
		},
	}
}

// Sphere is sum x_i^2.
func Sphere(x []float64) (float64, error) {
	return floats.Dot(x, x), nil
}

// Rosenbrock is the banana valley with minimum at (1, ..., 1).
func Rosenbrock(x []float64) (float64, error) {
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// Rastrigin is highly multimodal with minimum 0 at the origin.
func Rastrigin(x []float64) (float64, error) {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

// Ackley has a nearly flat outer region and minimum 0 at the origin.
func Ackley(x []float64) (float64, error) {
	n := float64(len(x))
	var sq, cos float64
	for _, v := range x {
		sq += v * v
		cos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sq/n)) - math.Exp(cos/n) + 20 + math.E, nil
}
