package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/logging"
)

type errorResponse struct {
	Status     string   `json:"status"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// statusOf maps domain errors to an HTTP status and a stable code.
func statusOf(err error) (int, string, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", "invalid input"
	case errors.Is(err, errs.ErrDuplicateUser):
		return http.StatusBadRequest, "duplicate_user", "username already exists"
	case errors.Is(err, errs.ErrNoFaceDetected):
		return http.StatusBadRequest, "no_face_detected", "no face detected in the image"
	case errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, errs.ErrCredentialMismatch):
		return http.StatusUnauthorized, "credential_mismatch", "wrong password"
	case errors.Is(err, errs.ErrThresholdNotMet):
		return http.StatusUnauthorized, "threshold_not_met", "face verification failed"
	case errors.Is(err, errs.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failure", "could not save user"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	code, name, msg := statusOf(err)
	body := errorResponse{Status: "error", Code: name, Message: msg}

	var te *errs.ThresholdError
	if errors.As(err, &te) {
		score := te.Score
		body.Similarity = &score
	}

	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", logging.RequestID(c.Request.Context())),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(code, body)
}

func abort(c *gin.Context, code int, name, msg string) {
	c.AbortWithStatusJSON(code, errorResponse{Status: "error", Code: name, Message: msg})
}
