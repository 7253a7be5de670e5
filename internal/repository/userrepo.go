// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/face-keeper/internal/model"
)

// UserRepository provides lookup and creation of enrolled users.
type UserRepository interface {
	// Create inserts a new user; errs.ErrDuplicateUser if the username is taken.
	Create(ctx context.Context, u model.User) error
	// GetByUsername loads a user; errs.ErrUserNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
