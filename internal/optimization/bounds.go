package optimization

// Bounds is the box constraint of a problem, one [min, max] pair per dimension.
type Bounds [][2]float64

// Dimensions returns the number of dimensions.
func (b Bounds) Dimensions() int {
	return len(b)
}

// Denormalize maps a point from [0,1]^D into the box, writing into dst.
// dst is allocated when nil.
func (b Bounds) Denormalize(dst, normalized []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(b))
	}
	for i, pair := range b {
		dst[i] = pair[0] + normalized[i]*(pair[1]-pair[0])
	}
	return dst
}

// Normalize maps a point in the box into [0,1]^D. Zero-width dimensions map
// to 0.
func (b Bounds) Normalize(dst, point []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(b))
	}
	for i, pair := range b {
		width := pair[1] - pair[0]
		if width == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = (point[i] - pair[0]) / width
	}
	return dst
}

// Contains reports whether point lies inside the box.
func (b Bounds) Contains(point []float64) bool {
	if len(point) != len(b) {
		return false
	}
	for i, pair := range b {
		if point[i] < pair[0] || point[i] > pair[1] {
			return false
		}
	}
	return true
}
