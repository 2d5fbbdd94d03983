package evolution

// uniformSource is the subset of *rand.Rand used by the operators.
type uniformSource interface {
	Float64() float64
	Intn(n int) int
}

// binomialCrossover fills mask with independent Bernoulli(crossp) draws. When
// every draw fails, one uniformly chosen dimension is forced on so the trial
// always differs from its parent somewhere.
func binomialCrossover(rng uniformSource, mask []bool, crossp float64) {
	adopted := false
	for i := range mask {
		mask[i] = rng.Float64() < crossp
		adopted = adopted || mask[i]
	}
	if !adopted {
		mask[rng.Intn(len(mask))] = true
	}
}

// applyCrossover writes mutant where mask is set and parent elsewhere.
func applyCrossover(dst []float64, mask []bool, mutant, parent []float64) {
	for i, take := range mask {
		if take {
			dst[i] = mutant[i]
		} else {
			dst[i] = parent[i]
		}
	}
}

// differentialMutation writes clip(a + f*(b - c)) into dst.
func differentialMutation(dst, a, b, c []float64, f float64) {
	for i := range dst {
		dst[i] = clip01(a[i] + f*(b[i]-c[i]))
	}
}

// scaledMutation writes clip(a + s*(b - c)) into dst with a per-dimension
// scale vector s.
func scaledMutation(dst, a, b, c, s []float64) {
	for i := range dst {
		dst[i] = clip01(a[i] + s[i]*(b[i]-c[i]))
	}
}
