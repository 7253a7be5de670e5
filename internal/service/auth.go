// Package service orchestrates face enrollment and verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/face-keeper/internal/biometric"
	pkgcrypto "github.com/and161185/face-keeper/internal/crypto"
	"github.com/and161185/face-keeper/internal/encoder"
	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/logging"
	"github.com/and161185/face-keeper/internal/model"
	"github.com/and161185/face-keeper/internal/repository"
)

// AuthService defines enrollment and verification operations.
type AuthService interface {
	// Register enrolls a user from one or more face images.
	Register(ctx context.Context, username, password string, images [][]byte) error
	// Login checks the password, then the face. The similarity is reported on
	// success and on errs.ErrThresholdNotMet.
	Login(ctx context.Context, username, password string, image []byte) (model.LoginResult, error)
}

// Options tunes the service.
type Options struct {
	Threshold float64       // similarity must be strictly greater
	SignKey   []byte        // HS256 key; empty disables access tokens
	AccessTTL time.Duration // access token lifetime
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	enc       encoder.FaceEncoder
	policy    biometric.Policy
	signKey   []byte
	accessTTL time.Duration
	log       *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, enc encoder.FaceEncoder, opts Options, log *zap.Logger) *AuthServiceImpl {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	return &AuthServiceImpl{
		users:     users,
		enc:       enc,
		policy:    biometric.Policy{Threshold: opts.Threshold},
		signKey:   opts.SignKey,
		accessTTL: opts.AccessTTL,
		log:       log.Named("auth_service"),
	}
}

// Register validates input, encodes every image concurrently, aggregates the
// usable embeddings and creates the user.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string, images [][]byte) error {
	opLog := logging.WithOperation(s.log, "service.register", logging.RequestID(ctx))

	if len(images) == 0 {
		return fmt.Errorf("%w: no images", errs.ErrInvalidInput)
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: empty username/password", errs.ErrInvalidInput)
	}
	// Fail fast before paying for inference; Create re-checks under its lock.
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return errs.ErrDuplicateUser
	} else if !errors.Is(err, errs.ErrUserNotFound) {
		return err
	}

	opLog.Info("enrollment started", zap.String("username", username), zap.Int("images", len(images)))

	found := make([][]float32, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			emb, err := s.embed(gctx, img)
			if err != nil {
				return err
			}
			found[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opLog.Error("encoding failed", zap.Error(err))
		return err
	}

	vectors := make([][]float32, 0, len(found))
	for _, v := range found {
		if v != nil {
			vectors = append(vectors, v)
		}
	}
	ref, err := biometric.Aggregate(vectors)
	if errors.Is(err, errs.ErrEmptyInput) {
		opLog.Info("no face in any image", zap.String("username", username))
		return errs.ErrNoFaceDetected
	}
	if err != nil {
		return err
	}

	cred, err := pkgcrypto.EncodeCredential(password)
	if err != nil {
		return err
	}
	if err := s.users.Create(ctx, model.User{Username: username, Password: cred, FaceVector: ref}); err != nil {
		return err
	}
	opLog.Info("enrollment finished",
		zap.String("username", username),
		zap.Int("faces", len(vectors)),
		zap.Int("skipped", len(images)-len(vectors)),
	)
	return nil
}

// Login verifies the password before touching the encoder.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string, image []byte) (model.LoginResult, error) {
	opLog := logging.WithOperation(s.log, "service.login", logging.RequestID(ctx))

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return model.LoginResult{}, err
	}
	if !pkgcrypto.VerifyCredential(password, u.Password) {
		opLog.Info("login rejected: credential", zap.String("username", username))
		return model.LoginResult{}, errs.ErrCredentialMismatch
	}

	emb, err := s.embed(ctx, image)
	if err != nil {
		return model.LoginResult{}, err
	}
	if emb == nil {
		return model.LoginResult{}, errs.ErrNoFaceDetected
	}

	v := s.policy.Decide(biometric.Cosine(u.FaceVector, emb))
	opLog.Info("login attempt",
		zap.String("username", username),
		zap.Float64("similarity", v.Similarity),
		zap.Bool("accepted", v.Accepted),
	)
	res := model.LoginResult{Verification: v}
	if !v.Accepted {
		return res, &errs.ThresholdError{Score: v.Similarity, Threshold: v.Threshold}
	}

	if len(s.signKey) > 0 {
		tok, exp, err := s.issueAccessToken(u.Username)
		if err != nil {
			return model.LoginResult{}, err
		}
		res.Tokens = model.Tokens{AccessToken: tok, ExpiresAt: exp}
	}
	return res, nil
}

// embed returns the embedding of the largest face that has one, or nil when
// the image is unreadable or contains no such face.
func (s *AuthServiceImpl) embed(ctx context.Context, image []byte) ([]float32, error) {
	if _, err := encoder.CheckImage(image); err != nil {
		s.log.Debug("skipping image", zap.Error(err))
		return nil, nil
	}
	dets, err := s.enc.Detect(ctx, image)
	if err != nil {
		return nil, logging.WrapOp(ctx, "service.embed", err)
	}
	// Faces without an embedding cannot be compared, so they do not compete.
	usable := dets[:0:0]
	for _, d := range dets {
		if len(d.Embedding) > 0 {
			usable = append(usable, d)
		}
	}
	face, ok := biometric.SelectPrimary(usable)
	if !ok {
		return nil, nil
	}
	return face.Embedding, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
