package keyword

import "math"

// SparseVector is a sparse term-weight vector. Indices are vocabulary slots
// in ascending order; Values holds the weight for the matching slot.
type SparseVector struct {
	Indices []int32
	Values  []float32
}

// Dot computes the sparse dot product of a and b.
func Dot(a, b SparseVector) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the L2 norm of v.
func (v SparseVector) Norm() float32 {
	var sum float32
	for _, x := range v.Values {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

// Cosine computes the cosine similarity of a and b.
// Returns 0 when either vector is empty or has zero norm.
func Cosine(a, b SparseVector) float32 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// normalize scales v to unit L2 norm in place. Zero vectors are left as-is.
func (v SparseVector) normalize() {
	n := v.Norm()
	if n == 0 {
		return
	}
	inv := 1 / n
	for i := range v.Values {
		v.Values[i] *= inv
	}
}
