package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 8

// Hasher hashes and verifies user passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

type Config struct {
	Cost          int
	MaxConcurrent int
}

// BcryptHasher runs bcrypt on a bounded number of concurrent slots so that a
// burst of registrations or logins cannot occupy every CPU.
type BcryptHasher struct {
	cost int
	sem  chan struct{}
}

func NewBcryptHasher(cfg Config) (*BcryptHasher, error) {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cfg.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}
	return &BcryptHasher{
		cost: cfg.Cost,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Hash returns a salted bcrypt digest of plaintext.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var (
		digest []byte
		err    error
	)
	if waitErr := h.do(ctx, func() {
		digest, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	}); waitErr != nil {
		return "", waitErr
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A mismatch is not an
// error; only an unusable digest is.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	var err error
	if waitErr := h.do(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	}); waitErr != nil {
		return false, waitErr
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}

func (h *BcryptHasher) do(ctx context.Context, work func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.sem <- struct{}{}:
	}
	defer func() { <-h.sem }()
	work()
	return nil
}

var _ Hasher = (*BcryptHasher)(nil)
