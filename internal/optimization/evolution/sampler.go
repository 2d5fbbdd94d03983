package evolution

import (
	"fmt"
	"math/rand"
)

// Sampler draws distinct indices uniformly without replacement.
type Sampler interface {
	// Sample returns k distinct indices from [0, n) excluding exclude.
	// A negative exclude excludes nothing.
	Sample(n, k, exclude int) []int
}

// RandSampler is a Sampler backed by a seeded *rand.Rand. It performs a
// partial Fisher-Yates shuffle over the candidate set, so the draws it
// consumes depend only on n, k and exclude.
type RandSampler struct {
	rng  *rand.Rand
	pool []int
}

// NewRandSampler creates a sampler drawing from rng.
func NewRandSampler(rng *rand.Rand) *RandSampler {
	return &RandSampler{rng: rng}
}

// Sample implements Sampler.
func (s *RandSampler) Sample(n, k, exclude int) []int {
	s.pool = s.pool[:0]
	for i := 0; i < n; i++ {
		if i != exclude {
			s.pool = append(s.pool, i)
		}
	}
	if k > len(s.pool) {
		panic(fmt.Sprintf("cannot sample %d distinct indices from %d candidates", k, len(s.pool)))
	}

	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(len(s.pool)-i)
		s.pool[i], s.pool[j] = s.pool[j], s.pool[i]
	}

	out := make([]int, k)
	copy(out, s.pool[:k])
	return out
}
