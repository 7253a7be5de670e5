// Package encoder talks to the face detection/embedding model.
//
// The model itself runs out of process (an InsightFace sidecar). Clients here
// only move images in and detections out; Pool bounds how many inferences run
// at once.
package encoder

import (
	"context"
	"errors"

	"github.com/and161185/face-keeper/internal/model"
)

// DefaultModel is the InsightFace model pack requested from the sidecar.
const DefaultModel = "buffalo_l"

// ErrBadResponse indicates the encoder answered with an unusable payload.
var ErrBadResponse = errors.New("encoder: bad response")

// FaceEncoder detects faces in an encoded image and returns one detection per face.
type FaceEncoder interface {
	Detect(ctx context.Context, image []byte) ([]model.Detection, error)
}

// faceJSON is the per-face payload shared by the HTTP and gRPC contracts.
type faceJSON struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

func (f faceJSON) toDetection() (model.Detection, error) {
	if len(f.BBox) != 4 {
		return model.Detection{}, ErrBadResponse
	}
	return model.Detection{
		Box:       model.BBox{X1: f.BBox[0], Y1: f.BBox[1], X2: f.BBox[2], Y2: f.BBox[3]},
		Embedding: f.Embedding,
		Score:     f.DetScore,
	}, nil
}

func toDetections(faces []faceJSON) ([]model.Detection, error) {
	out := make([]model.Detection, 0, len(faces))
	for _, f := range faces {
		d, err := f.toDetection()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
