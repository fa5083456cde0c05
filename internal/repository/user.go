package repository

import (
	"context"
	"errors"

	"noteful-auth/internal/domain"
)

var (
	// ErrDuplicateUsername is returned by Create when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUserNotFound is returned by lookups that match no user.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines persistence operations for User entities.
// Create must enforce username uniqueness atomically and report a violation
// as ErrDuplicateUsername; it assigns CreatedAt and UpdatedAt.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Ping(ctx context.Context) error
}
