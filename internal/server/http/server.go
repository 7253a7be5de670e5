// Package httpserver exposes the face authentication HTTP API.
package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/service"
)

const apiPrefix = "/api/v1/auth"

// UserCounter reports the number of enrolled users.
type UserCounter interface {
	Len() int
}

// Options configures the HTTP layer.
type Options struct {
	Name         string // reported by the root endpoint
	SignKey      []byte // enables the token-protected routes when set
	MaxBodyBytes int64
}

// Server wires the auth service into gin handlers.
type Server struct {
	auth    service.AuthService
	users   UserCounter
	name    string
	signKey []byte
	maxBody int64
	log     *zap.Logger
}

// New constructs a server with injected dependencies.
func New(auth service.AuthService, users UserCounter, opts Options, log *zap.Logger) *Server {
	if opts.Name == "" {
		opts.Name = "face-keeper"
	}
	return &Server{
		auth:    auth,
		users:   users,
		name:    opts.Name,
		signKey: opts.SignKey,
		maxBody: opts.MaxBodyBytes,
		log:     log.Named("http"),
	}
}

// Handler builds the gin engine with middleware and routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(
		RequestID(),
		Logging(s.log),
		Recover(s.log),
		CORS(),
	)
	if s.maxBody > 0 {
		r.Use(BodyLimit(s.maxBody))
	}
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes wires the HTTP handlers to the router.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/", s.root)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(apiPrefix)
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	if len(s.signKey) > 0 {
		api.GET("/me", Auth(s.signKey), s.me)
	}
}
