// Package model defines domain entities used by services and repositories.
package model

import "time"

// DefaultDim is the embedding size produced by the default encoder model.
const DefaultDim = 512

// BBox is a face bounding box in image pixel coordinates.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Area returns (x2-x1)*(y2-y1).
func (b BBox) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Detection is a single face found by the encoder. It lives only for one encode call.
type Detection struct {
	Box       BBox
	Embedding []float32
	Score     float64 // detector confidence, informational
}

// User is an enrolled account. Users are immutable once created.
type User struct {
	Username   string    `json:"username"`    // unique, case-sensitive
	Password   string    `json:"password"`    // encoded credential, see crypto.EncodeCredential
	FaceVector []float32 `json:"face_vector"` // L2-normalized reference embedding
}

// Verification is the outcome of comparing a live embedding with a reference.
type Verification struct {
	Accepted   bool
	Similarity float64
	Threshold  float64
}

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Verification Verification
	Tokens       Tokens // zero when token issuing is disabled
}
