// Package biometric implements face selection, embedding aggregation,
// cosine scoring and the accept/reject policy.
package biometric

import "github.com/and161185/face-keeper/internal/model"

// SelectPrimary returns the detection with the largest bounding box.
// Ties keep the earliest detection. ok is false for an empty list.
func SelectPrimary(dets []model.Detection) (best model.Detection, ok bool) {
	if len(dets) == 0 {
		return model.Detection{}, false
	}
	best = dets[0]
	bestArea := best.Box.Area()
	for _, d := range dets[1:] {
		if a := d.Box.Area(); a > bestArea {
			best, bestArea = d, a
		}
	}
	return best, true
}
