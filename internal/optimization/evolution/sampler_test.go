package evolution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandSampler(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		k       int
		exclude int
	}{
		{name: "three donors", n: 20, k: 3, exclude: 7},
		{name: "minimal population", n: 4, k: 3, exclude: 0},
		{name: "exclude last", n: 4, k: 3, exclude: 3},
		{name: "no exclusion", n: 5, k: 1, exclude: -1},
		{name: "all candidates", n: 6, k: 6, exclude: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRandSampler(rand.New(rand.NewSource(1)))
			for trial := 0; trial < 200; trial++ {
				got := s.Sample(tt.n, tt.k, tt.exclude)
				require.Len(t, got, tt.k)

				seen := make(map[int]bool, tt.k)
				for _, idx := range got {
					assert.GreaterOrEqual(t, idx, 0)
					assert.Less(t, idx, tt.n)
					assert.NotEqual(t, tt.exclude, idx, "excluded index drawn")
					assert.False(t, seen[idx], "index %d drawn twice", idx)
					seen[idx] = true
				}
			}
		})
	}
}

func TestRandSamplerCoversCandidates(t *testing.T) {
	s := NewRandSampler(rand.New(rand.NewSource(7)))
	counts := make([]int, 5)
	for i := 0; i < 4000; i++ {
		for _, idx := range s.Sample(5, 1, 2) {
			counts[idx]++
		}
	}

	assert.Zero(t, counts[2])
	for i, c := range counts {
		if i == 2 {
			continue
		}
		// 1000 expected per candidate
		assert.InDelta(t, 1000, c, 150, "candidate %d drawn %d times", i, c)
	}
}

func TestRandSamplerDeterministic(t *testing.T) {
	a := NewRandSampler(rand.New(rand.NewSource(99)))
	b := NewRandSampler(rand.New(rand.NewSource(99)))
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Sample(20, 3, i%20), b.Sample(20, 3, i%20))
	}
}

func TestRandSamplerTooFewCandidates(t *testing.T) {
	s := NewRandSampler(rand.New(rand.NewSource(1)))
	assert.Panics(t, func() { s.Sample(3, 3, 0) })
}
