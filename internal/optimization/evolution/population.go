package evolution

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// population stores N individuals in normalized space together with their
// fitness. current is read-only while a generation is running; accepted
// trials are written into next, and the two are swapped by commit.
type population struct {
	current *mat.Dense
	next    *mat.Dense
	fitness []float64

	bounds    optimization.Bounds
	objective optimization.ObjectiveFunction

	// evaluations counts objective calls in the running generation.
	evaluations int
}

// newPopulation samples n individuals uniformly from [0,1]^D and evaluates
// them in order.
func newPopulation(n int, bounds optimization.Bounds, objective optimization.ObjectiveFunction, rng *rand.Rand) (*population, error) {
	d := bounds.Dimensions()
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.Float64()
	}

	p := &population{
		current:   mat.NewDense(n, d, data),
		next:      mat.NewDense(n, d, nil),
		fitness:   make([]float64, n),
		bounds:    bounds,
		objective: objective,
	}

	for i := 0; i < n; i++ {
		_, f, err := p.evaluate(p.row(i))
		if err != nil {
			return nil, err
		}
		p.fitness[i] = f
	}
	p.next.Copy(p.current)
	return p, nil
}

func (p *population) size() int {
	n, _ := p.current.Dims()
	return n
}

func (p *population) dims() int {
	_, d := p.current.Dims()
	return d
}

// row returns a view of individual i in the current buffer.
func (p *population) row(i int) []float64 {
	return p.current.RawRowView(i)
}

// evaluate denormalizes x and calls the objective. The returned point is a
// fresh slice owned by the caller.
func (p *population) evaluate(x []float64) ([]float64, float64, error) {
	point := p.bounds.Denormalize(nil, x)
	p.evaluations++
	f, err := p.objective(point)
	if err != nil {
		return nil, 0, err
	}
	return point, f, nil
}

// begin starts a generation: next mirrors current so that rejected trials
// leave their parent in place.
func (p *population) begin() {
	p.next.Copy(p.current)
}

// accept publishes trial as individual j of the next generation if it is
// strictly better than the incumbent.
func (p *population) accept(j int, trial []float64, f float64) bool {
	if !(f < p.fitness[j]) {
		return false
	}
	p.fitness[j] = f
	copy(p.next.RawRowView(j), trial)
	return true
}

// commit swaps the buffers at generation end.
func (p *population) commit() {
	p.current, p.next = p.next, p.current
}

// best returns the index of the fittest individual; the first wins ties.
func (p *population) best() int {
	return floats.MinIdx(p.fitness)
}

// resample replaces individual i with a uniform random point and
// re-evaluates it.
func (p *population) resample(i int, rng *rand.Rand) ([]float64, float64, error) {
	x := p.current.RawRowView(i)
	for d := range x {
		x[d] = rng.Float64()
	}
	point, f, err := p.evaluate(x)
	if err != nil {
		return nil, 0, err
	}
	p.fitness[i] = f
	return point, f, nil
}

// mergePrune evicts near-duplicates before mutation. Every pair closer than
// mergeFactor times the mean pairwise distance marks its worse member (the
// higher index on equal fitness); marked individuals are resampled and
// re-evaluated. It returns the replaced indices in ascending order.
func (p *population) mergePrune(rng *rand.Rand) ([]int, error) {
	marked := mergeCandidates(p.current, p.fitness)

	var replaced []int
	for i, m := range marked {
		if !m {
			continue
		}
		if _, _, err := p.resample(i, rng); err != nil {
			return nil, err
		}
		replaced = append(replaced, i)
	}
	return replaced, nil
}

// mergeCandidates marks individuals for merge-pruning without modifying the
// population.
func mergeCandidates(pop *mat.Dense, fitness []float64) []bool {
	n, _ := pop.Dims()
	marked := make([]bool, n)
	if n < 2 {
		return marked
	}

	dist := PairwiseDistances(pop)
	mergeDist := mergeFactor * meanPairwiseDistance(dist)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist.At(i, j) > mergeDist {
				continue
			}
			if fitness[i] > fitness[j] {
				marked[i] = true
			} else {
				marked[j] = true
			}
		}
	}
	return marked
}

// clip01 clamps v into [0,1].
func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
