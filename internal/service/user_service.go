package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"noteful-auth/internal/apperr"
	"noteful-auth/internal/credentials"
	"noteful-auth/internal/domain"
	"noteful-auth/internal/password"
	"noteful-auth/internal/repository"
	"noteful-auth/internal/token"
)

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user domain.PublicUser) (token.Token, error)
	Verify(tokenString string) (*token.Claims, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in credentials.RegistrationInput) (*domain.PublicUser, error)
	Login(ctx context.Context, username, password string) (token.Token, error)
	Refresh(ctx context.Context, tokenString string) (token.Token, error)
	Authenticate(ctx context.Context, tokenString string) (*token.Claims, error)
	GetUser(ctx context.Context, id string) (*domain.PublicUser, error)
}

type userService struct {
	users  repository.UserRepository
	hasher password.Hasher
	tokens TokenIssuer
	newID  func() string

	decoyOnce sync.Once
	decoy     string
}

func NewUserService(users repository.UserRepository, hasher password.Hasher, tokens TokenIssuer) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		newID:  uuid.NewString,
	}
}

// Register validates the input, hashes the password and stores the user.
// Username uniqueness is left to the store so concurrent duplicates cannot
// both succeed.
func (s *userService) Register(ctx context.Context, in credentials.RegistrationInput) (*domain.PublicUser, error) {
	reg, err := credentials.Validate(in)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user := &domain.User{
		ID:           s.newID(),
		Username:     reg.Username,
		Fullname:     reg.Fullname,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, apperr.ErrDuplicateUsername
		}
		return nil, apperr.Wrap(apperr.KindInternal, "create user", err)
	}

	public := user.Public()
	return &public, nil
}

// Login checks the credentials and issues a token. Unknown usernames and
// wrong passwords fail identically.
func (s *userService) Login(ctx context.Context, username, plaintext string) (token.Token, error) {
	if username == "" || plaintext == "" {
		s.decoyVerify(ctx, plaintext)
		return token.Token{}, apperr.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return token.Token{}, apperr.Wrap(apperr.KindInternal, "find user", err)
		}
		s.decoyVerify(ctx, plaintext)
		return token.Token{}, apperr.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, plaintext, user.PasswordHash)
	if err != nil {
		return token.Token{}, apperr.Wrap(apperr.KindInternal, "verify password", err)
	}
	if !ok {
		return token.Token{}, apperr.ErrInvalidCredentials
	}

	return s.issue(user.Public())
}

// Refresh issues a new token for the identity embedded in a still-valid token.
// The embedded user is reused as-is; the store is not consulted.
func (s *userService) Refresh(ctx context.Context, tokenString string) (token.Token, error) {
	claims, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return token.Token{}, err
	}
	return s.issue(claims.User)
}

// Authenticate verifies a bearer token.
func (s *userService) Authenticate(_ context.Context, tokenString string) (*token.Claims, error) {
	if tokenString == "" {
		return nil, apperr.ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, apperr.ErrUnauthenticated.Message, err)
	}
	return claims, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*domain.PublicUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Wrap(apperr.KindInternal, "find user", err)
	}
	public := user.Public()
	return &public, nil
}

func (s *userService) issue(user domain.PublicUser) (token.Token, error) {
	tok, err := s.tokens.Issue(user)
	if err != nil {
		return token.Token{}, apperr.Wrap(apperr.KindInternal, "issue token", err)
	}
	return tok, nil
}

// decoyVerify runs one comparison against a throwaway hash so that rejected
// logins take about as long as a wrong password for a known user.
func (s *userService) decoyVerify(ctx context.Context, plaintext string) {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash(context.WithoutCancel(ctx), uuid.NewString())
	})
	_, _ = s.hasher.Verify(ctx, plaintext, s.decoy)
}
