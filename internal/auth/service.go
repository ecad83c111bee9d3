package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const maxNameLen = 49

// Service provides account operations on top of an AccountStore.
type Service struct {
	store     store.AccountStore
	hasher    Hasher
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service. A nil hasher stores plaintext.
func NewService(accounts store.AccountStore, hasher Hasher, jwtConfig *JWTConfig) *Service {
	if hasher == nil {
		hasher = PlainHasher{}
	}
	return &Service{
		store:     accounts,
		hasher:    hasher,
		jwtConfig: jwtConfig,
	}
}

// ValidName reports whether s can be used as a username or group name:
// non-empty, bounded, and free of whitespace and the '|' and ',' separators
// used by the persisted formats.
func ValidName(s string) bool {
	return len(s) <= maxNameLen && store.ValidName(s)
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, username, password string) (*store.Account, error) {
	if !ValidName(username) {
		return nil, ErrInvalidUsername
	}
	if password == "" || strings.ContainsAny(password, " \t\r\n") {
		return nil, ErrInvalidPassword
	}

	credential, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.CreateAccount(ctx, username, credential); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &store.Account{Username: username, Credential: credential}, nil
}

// Login validates credentials and returns the canonical account.
func (s *Service) Login(ctx context.Context, username, password string) (*store.Account, error) {
	acc, err := s.store.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if err := s.hasher.Compare(acc.Credential, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// IssueToken logs in and returns a signed operator API token.
func (s *Service) IssueToken(ctx context.Context, username, password string) (string, error) {
	if s.jwtConfig == nil {
		return "", errors.New("token issuing disabled")
	}
	acc, err := s.Login(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, acc.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if s.jwtConfig == nil {
		return nil, errors.New("token validation disabled")
	}
	return ValidateToken(s.jwtConfig, tokenString)
}
