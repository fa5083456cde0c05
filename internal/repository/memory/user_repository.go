// Package memory provides an in-process UserRepository for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"noteful-auth/internal/domain"
	"noteful-auth/internal/repository"
)

type UserRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byUsername map[string]string
	now        func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[string]*domain.User),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (r *UserRepository) Init(context.Context) error { return nil }

func (r *UserRepository) Ping(context.Context) error { return nil }

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return repository.ErrDuplicateUsername
	}

	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[stored.ID] = &stored
	r.byUsername[stored.Username] = stored.ID
	return nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := *r.byID[id]
	return &user, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := *stored
	return &user, nil
}

// Len reports how many users are stored.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ repository.UserRepository = (*UserRepository)(nil)
