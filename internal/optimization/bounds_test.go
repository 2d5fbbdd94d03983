package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsMapping(t *testing.T) {
	b := Bounds{{-5, 5}, {0, 10}, {2, 2}}
	assert.Equal(t, 3, b.Dimensions())

	point := b.Denormalize(nil, []float64{0.5, 0.25, 0.7})
	assert.InDeltaSlice(t, []float64{0, 2.5, 2}, point, 1e-12)

	// Zero-width dimensions normalize to 0.
	assert.InDeltaSlice(t, []float64{0.5, 0.25, 0}, b.Normalize(nil, point), 1e-12)

	dst := make([]float64, 3)
	got := b.Denormalize(dst, []float64{1, 1, 1})
	assert.Equal(t, []float64{5, 10, 2}, got)
	assert.Equal(t, dst, got, "dst is reused")
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{{-1, 1}, {0, 2}}

	tests := []struct {
		name  string
		point []float64
		want  bool
	}{
		{name: "interior", point: []float64{0, 1}, want: true},
		{name: "on the edge", point: []float64{-1, 2}, want: true},
		{name: "outside", point: []float64{1.01, 1}, want: false},
		{name: "wrong dimension", point: []float64{0}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Contains(tt.point))
		})
	}
}
