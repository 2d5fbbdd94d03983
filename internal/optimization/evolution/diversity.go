package evolution

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Centroid returns the column means of pop.
func Centroid(pop mat.Matrix) []float64 {
	n, d := pop.Dims()
	c := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, pop)
		c[j] = stat.Mean(col, nil)
	}
	return c
}

// Diversity is the mean Euclidean distance of the rows of pop from their
// centroid, divided by the dimension count. It is zero only when every row
// coincides.
func Diversity(pop mat.Matrix) float64 {
	n, d := pop.Dims()
	if n == 0 || d == 0 {
		return 0
	}

	c := Centroid(pop)
	row := make([]float64, d)
	distances := make([]float64, n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, pop)
		distances[i] = floats.Distance(row, c, 2)
	}
	return stat.Mean(distances, nil) / float64(d)
}

// pointDiversity is the mean squared per-dimension distance of x from c.
func pointDiversity(x, c []float64) float64 {
	var sum float64
	for i := range x {
		diff := x[i] - c[i]
		sum += diff * diff
	}
	return sum / float64(len(x))
}

// PairwiseDistances returns the symmetric matrix of Euclidean distances
// between the rows of pop.
func PairwiseDistances(pop mat.Matrix) *mat.SymDense {
	n, d := pop.Dims()
	dist := mat.NewSymDense(n, nil)
	ri := make([]float64, d)
	rj := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(ri, i, pop)
		for j := i + 1; j < n; j++ {
			mat.Row(rj, j, pop)
			dist.SetSym(i, j, floats.Distance(ri, rj, 2))
		}
	}
	return dist
}

// meanPairwiseDistance averages the strict upper triangle of dist.
func meanPairwiseDistance(dist *mat.SymDense) float64 {
	n := dist.SymmetricDim()
	if n < 2 {
		return 0
	}
	values := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			values = append(values, dist.At(i, j))
		}
	}
	return stat.Mean(values, nil)
}
