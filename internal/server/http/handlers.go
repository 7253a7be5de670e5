package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/encoder"
	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/logging"
)

type registerRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Images   []string `json:"images"`
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ImageBase64 string `json:"image_base64"`
}

type authResponse struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	Similarity  *float64   `json:"similarity,omitempty"`
	AccessToken string     `json:"access_token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system": s.name,
		"status": "running",
		"users":  s.users.Len(),
	})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}

	// Undecodable entries are passed as nil and skipped like faceless images.
	images := make([][]byte, len(req.Images))
	for i, raw := range req.Images {
		b, err := encoder.DecodeBase64(raw)
		if err != nil {
			s.log.Debug("bad base64 image", zap.Int("index", i), zap.String("request_id", logging.RequestID(c.Request.Context())))
			continue
		}
		images[i] = b
	}

	if err := s.auth.Register(c.Request.Context(), req.Username, req.Password, images); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Status: "success", Message: "registration completed"})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}
	img, _ := encoder.DecodeBase64(req.ImageBase64)

	res, err := s.auth.Login(c.Request.Context(), req.Username, req.Password, img)
	if err != nil {
		s.writeError(c, err)
		return
	}

	sim := res.Verification.Similarity
	out := authResponse{Status: "success", Message: "login succeeded", Similarity: &sim}
	if res.Tokens.AccessToken != "" {
		exp := res.Tokens.ExpiresAt
		out.AccessToken = res.Tokens.AccessToken
		out.ExpiresAt = &exp
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) me(c *gin.Context) {
	username, _ := UsernameFromCtx(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// bind decodes a JSON body and answers 400 or 413 on failure.
func (s *Server) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abort(c, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return false
	}
	s.writeError(c, errors.Join(errs.ErrInvalidInput, err))
	return false
}
