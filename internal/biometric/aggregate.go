package biometric

import (
	"fmt"
	"math"

	"github.com/and161185/face-keeper/internal/errs"
)

// Aggregate reduces enrollment embeddings to one reference vector: the
// elementwise mean, scaled to unit length. A mean that is exactly zero is
// returned as the zero vector.
func Aggregate(vs [][]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, errs.ErrEmptyInput
	}
	dim := len(vs[0])
	sum := make([]float64, dim)
	for i, v := range vs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding[%d] has dim %d, want %d", errs.ErrInvalidInput, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vs))
	var sq float64
	for j := range sum {
		sum[j] /= n
		sq += sum[j] * sum[j]
	}

	norm := math.Sqrt(sq)
	out := make([]float32, dim)
	for j, m := range sum {
		if norm > 0 {
			m /= norm
		}
		out[j] = float32(m)
	}
	return out, nil
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return math.Sqrt(sq)
}
