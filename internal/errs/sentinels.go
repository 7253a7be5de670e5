// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Domain outcomes of enrollment and verification. Each one is distinct and
// caller-visible; transports map them to their own status codes.
var (
	// ErrInvalidInput indicates a malformed request (no images, empty credentials, wrong vector size).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateUser indicates the username is already enrolled.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrNoFaceDetected indicates no usable face embedding could be extracted.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrUserNotFound indicates the username is not enrolled.
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialMismatch indicates the password did not match.
	ErrCredentialMismatch = errors.New("credential mismatch")

	// ErrThresholdNotMet indicates the face similarity did not exceed the threshold.
	ErrThresholdNotMet = errors.New("similarity threshold not met")

	// ErrPersistence indicates the user document could not be written.
	ErrPersistence = errors.New("persistence failure")

	// ErrEmptyInput is returned by the aggregator for an empty embedding list.
	// The service never lets it escape unwrapped.
	ErrEmptyInput = errors.New("empty input")
)

// Storage sentinels.
var (
	// ErrNotFound indicates the requested document or entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ThresholdError reports a rejected verification together with its score.
type ThresholdError struct {
	Score     float64
	Threshold float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s: similarity %.4f <= %.4f", ErrThresholdNotMet, e.Score, e.Threshold)
}

// Unwrap makes errors.Is(err, ErrThresholdNotMet) hold.
func (e *ThresholdError) Unwrap() error { return ErrThresholdNotMet }
