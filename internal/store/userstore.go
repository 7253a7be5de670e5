// Package store keeps enrolled users in memory on top of a persisted document.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/model"
	"github.com/and161185/face-keeper/internal/repository"
)

// UserStore is the in-memory user cache. It implements repository.UserRepository.
//
// Create holds writeMu for the whole check/persist/insert sequence, so two
// registrations of one username cannot both succeed. The snapshot is persisted
// before the map is updated: readers only ever see persisted users and a failed
// write leaves memory untouched.
type UserStore struct {
	doc repository.DocumentStore
	dim int
	log *zap.Logger

	writeMu sync.Mutex

	mu    sync.RWMutex
	byKey map[string]model.User
	order []string
}

var _ repository.UserRepository = (*UserStore)(nil)

// New constructs an empty store. Call Load before serving requests.
func New(doc repository.DocumentStore, dim int, log *zap.Logger) *UserStore {
	if dim <= 0 {
		dim = model.DefaultDim
	}
	return &UserStore{
		doc:   doc,
		dim:   dim,
		log:   log.Named("user_store"),
		byKey: map[string]model.User{},
	}
}

// Load replaces the cache with the persisted document. A missing document is
// created empty. Read or write failures leave the store empty and are only
// logged; a later Create still reports errs.ErrPersistence.
func (s *UserStore) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	users, err := s.doc.Load(ctx)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.replace(nil)
		if err := s.doc.Save(ctx, nil); err != nil {
			s.log.Warn("user document missing and not writable, starting empty", zap.Error(err))
			return nil
		}
		s.log.Info("user document created")
		return nil
	case err != nil:
		s.replace(nil)
		s.log.Warn("user document unreadable, starting empty", zap.Error(err))
		return nil
	}

	kept := make([]model.User, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for i, u := range users {
		if _, dup := seen[u.Username]; dup {
			s.log.Warn("skipping duplicate record", zap.Int("index", i), zap.String("username", u.Username))
			continue
		}
		if len(u.FaceVector) != s.dim {
			s.log.Warn("skipping record with wrong vector size",
				zap.Int("index", i), zap.String("username", u.Username), zap.Int("dim", len(u.FaceVector)))
			continue
		}
		seen[u.Username] = struct{}{}
		kept = append(kept, u)
	}
	s.replace(kept)
	s.log.Info("user document loaded", zap.Int("users", len(kept)))
	return nil
}

func (s *UserStore) replace(users []model.User) {
	byKey := make(map[string]model.User, len(users))
	order := make([]string, 0, len(users))
	for _, u := range users {
		byKey[u.Username] = u
		order = append(order, u.Username)
	}
	s.mu.Lock()
	s.byKey, s.order = byKey, order
	s.mu.Unlock()
}

// Lookup returns the user from memory. The face vector is a copy.
func (s *UserStore) Lookup(username string) (model.User, bool) {
	s.mu.RLock()
	u, ok := s.byKey[username]
	s.mu.RUnlock()
	if ok {
		u.FaceVector = append([]float32(nil), u.FaceVector...)
	}
	return u, ok
}

// GetByUsername returns a copy of the user or errs.ErrUserNotFound.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := s.Lookup(username)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return &u, nil
}

// Create adds u and persists the full snapshot.
func (s *UserStore) Create(ctx context.Context, u model.User) error {
	if u.Username == "" {
		return fmt.Errorf("%w: empty username", errs.ErrInvalidInput)
	}
	if len(u.FaceVector) != s.dim {
		return fmt.Errorf("%w: face vector has dim %d, want %d", errs.ErrInvalidInput, len(u.FaceVector), s.dim)
	}
	u.FaceVector = append([]float32(nil), u.FaceVector...)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, exists := s.Lookup(u.Username); exists {
		return errs.ErrDuplicateUser
	}

	snapshot := append(s.snapshot(), u)
	if err := s.doc.Save(ctx, snapshot); err != nil {
		s.log.Error("persist user document", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	s.mu.Lock()
	s.byKey[u.Username] = u
	s.order = append(s.order, u.Username)
	s.mu.Unlock()

	s.log.Info("user enrolled", zap.String("username", u.Username), zap.Int("users", len(snapshot)))
	return nil
}

// snapshot returns every user in insertion order.
func (s *UserStore) snapshot() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.order)+1)
	for _, name := range s.order {
		out = append(out, s.byKey[name])
	}
	return out
}

// Len returns the number of enrolled users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Usernames returns enrolled usernames in insertion order.
func (s *UserStore) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
