package repository

import (
	"context"

	"github.com/and161185/face-keeper/internal/model"
)

// DocumentStore persists the whole user collection as one snapshot.
// Save must be atomic: a concurrent or later Load never observes a partial write.
type DocumentStore interface {
	// Load returns every stored record in document order; errs.ErrNotFound if no document exists.
	Load(ctx context.Context) ([]model.User, error)
	// Save replaces the stored document with users.
	Save(ctx context.Context, users []model.User) error
}
