package evolution

import (
	"context"
	"iter"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/diffevo/internal/optimization"
)

// Guided is the diversity-guided engine. Every generation starts with
// merge-pruning; each target then uses one of two mutations:
//
//   - direction flip: a + dir*mut*(b - c), where dir is forced to +1 when
//     donor b sits closer to the centroid than DiversityLow, to -1 when it is
//     farther than DiversityHigh, and otherwise keeps its previous value;
//   - neighbor-scaled dual mutation: one distance is drawn from the
//     Neighbors nearest members of donor a and one from the rest, each
//     scales a random per-dimension step, and the better of the two trials
//     (sharing one crossover mask) competes for the slot.
type Guided struct {
	*base

	// direction persists across individuals and generations.
	direction float64

	centroid  []float64
	distances []float64
	scaleNear []float64
	scaleFar  []float64
	mutantFar []float64
	trialFar  []float64
}

// NewGuided validates cfg, samples and evaluates the initial population.
func NewGuided(cfg Config) (*Guided, error) {
	if err := cfg.ValidateGuided(); err != nil {
		return nil, validationError(err, "evolution.guided")
	}
	b, err := newBase(cfg, "evolution.guided")
	if err != nil {
		return nil, err
	}

	d := cfg.Bounds.Dimensions()
	return &Guided{
		base:      b,
		direction: 1,
		distances: make([]float64, 0, cfg.PopulationSize-1),
		scaleNear: make([]float64, d),
		scaleFar:  make([]float64, d),
		mutantFar: make([]float64, d),
		trialFar:  make([]float64, d),
	}, nil
}

// Direction returns the current mutation direction, +1 or -1.
func (e *Guided) Direction() float64 {
	return e.direction
}

// Next implements Engine.
func (e *Guided) Next(ctx context.Context) (optimization.Generation, error) {
	if err := e.start(ctx); err != nil {
		return optimization.Generation{}, err
	}

	pop := e.pop
	replaced, err := pop.mergePrune(e.rng)
	if err != nil {
		return optimization.Generation{}, e.fail(err)
	}
	for _, i := range replaced {
		e.best.offer(i, e.cfg.Bounds.Denormalize(nil, pop.row(i)), pop.fitness[i])
	}
	if len(replaced) > 0 {
		e.logger.Debug("Merged near-duplicates", zap.Int("generation", e.generation), zap.Ints("replaced", replaced))
	}

	pop.begin()
	e.centroid = Centroid(pop.current)

	n := pop.size()
	for j := 0; j < n; j++ {
		donors := e.sampler.Sample(n, 3, j)
		binomialCrossover(e.rng, e.mask, e.cfg.Crossover)

		var (
			trial []float64
			point []float64
			f     float64
			err   error
		)
		if e.rng.Float64() < e.cfg.DirectionProbability {
			trial, point, f, err = e.directionTrial(j, donors)
		} else {
			trial, point, f, err = e.dualTrial(j, donors)
		}
		if err != nil {
			return optimization.Generation{}, e.fail(err)
		}
		e.selectTrial(j, trial, point, f)
	}

	return e.publish(len(replaced)), nil
}

// Generations implements Engine.
func (e *Guided) Generations(ctx context.Context) iter.Seq2[optimization.Generation, error] {
	return generations(ctx, e.Next)
}

// steer updates the shared direction from the diversity of donor b.
func (e *Guided) steer(b []float64) {
	div := pointDiversity(b, e.centroid)
	switch {
	case div < e.cfg.DiversityLow:
		e.direction = 1
	case div > e.cfg.DiversityHigh:
		e.direction = -1
	}
}

func (e *Guided) directionTrial(j int, donors []int) ([]float64, []float64, float64, error) {
	pop := e.pop
	a, b, c := pop.row(donors[0]), pop.row(donors[1]), pop.row(donors[2])

	e.steer(b)
	differentialMutation(e.mutant, a, b, c, e.direction*e.cfg.Mutation)
	applyCrossover(e.trial, e.mask, e.mutant, pop.row(j))

	point, f, err := pop.evaluate(e.trial)
	return e.trial, point, f, err
}

func (e *Guided) dualTrial(j int, donors []int) ([]float64, []float64, float64, error) {
	pop := e.pop
	a, b, c := pop.row(donors[0]), pop.row(donors[1]), pop.row(donors[2])

	near, far := e.neighborDistances(donors[0])
	y := near[e.sampler.Sample(len(near), 1, -1)[0]]
	z := far[e.sampler.Sample(len(far), 1, -1)[0]]

	for d := range e.scaleNear {
		e.scaleNear[d] = e.cfg.Mutation * e.rng.Float64() * y
		e.scaleFar[d] = e.cfg.Mutation * e.rng.Float64() * z
	}

	parent := pop.row(j)
	scaledMutation(e.mutant, a, b, c, e.scaleNear)
	scaledMutation(e.mutantFar, a, b, c, e.scaleFar)
	applyCrossover(e.trial, e.mask, e.mutant, parent)
	applyCrossover(e.trialFar, e.mask, e.mutantFar, parent)

	pointNear, fNear, err := pop.evaluate(e.trial)
	if err != nil {
		return nil, nil, 0, err
	}
	pointFar, fFar, err := pop.evaluate(e.trialFar)
	if err != nil {
		return nil, nil, 0, err
	}

	if fFar < fNear {
		return e.trialFar, pointFar, fFar, nil
	}
	return e.trial, pointNear, fNear, nil
}

// neighborDistances returns the sorted distances from individual a to every
// other member, split into the Neighbors nearest and the rest. The donor's
// zero distance to itself is not included.
func (e *Guided) neighborDistances(a int) (near, far []float64) {
	pop := e.pop
	x := pop.row(a)

	e.distances = e.distances[:0]
	for i := 0; i < pop.size(); i++ {
		if i == a {
			continue
		}
		e.distances = append(e.distances, floats.Distance(x, pop.row(i), 2))
	}
	sort.Float64s(e.distances)

	k := e.cfg.Neighbors
	return e.distances[:k], e.distances[k:]
}
