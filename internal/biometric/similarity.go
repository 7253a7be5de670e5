package biometric

import (
	"math"

	"github.com/and161185/face-keeper/internal/model"
)

// DefaultThreshold balances false accepts and false rejects for buffalo_l embeddings.
const DefaultThreshold = 0.65

// Cosine computes dot(a,b)/(|a||b|). Empty, zero-norm or mismatched vectors
// score 0. The result is not clamped.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Policy decides verification outcomes against a fixed threshold.
type Policy struct {
	Threshold float64
}

// Decide accepts iff score > Threshold. Equality rejects.
func (p Policy) Decide(score float64) model.Verification {
	return model.Verification{
		Accepted:   score > p.Threshold,
		Similarity: score,
		Threshold:  p.Threshold,
	}
}
