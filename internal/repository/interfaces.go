// Package repository defines the persistence interfaces and their implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/amp/internal/model"
)

// ErrDuplicateEmail is returned by CreateWithPassword when the email is already registered.
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository persists users and their refresh-token state.
type UserRepository interface {
	// FindByEmail returns the user with the given email, or nil if none exists.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID returns the user with the given ID, or nil if none exists.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithPassword inserts a new user. It returns ErrDuplicateEmail
	// when the email is already taken.
	CreateWithPassword(ctx context.Context, user *model.User) error

	// UpdateRefreshTokenHash overwrites the stored refresh-token hash.
	UpdateRefreshTokenHash(ctx context.Context, id, hash string, expiresAt time.Time) error

	// ClearRefreshTokenHash sets the stored refresh-token hash to NULL.
	ClearRefreshTokenHash(ctx context.Context, id string) error
}
