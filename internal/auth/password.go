package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost is the default cost for bcrypt hashing.
	bcryptCost = 10

	// HashingPlain stores passwords as given.
	HashingPlain = "plain"
	// HashingBcrypt stores bcrypt hashes.
	HashingBcrypt = "bcrypt"
)

// Hasher turns a password into the credential stored with an account and
// checks a password against it.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(credential, password string) error
}

// NewHasher returns the hasher for mode ("plain" or "bcrypt").
func NewHasher(mode string) (Hasher, error) {
	switch mode {
	case "", HashingPlain:
		return PlainHasher{}, nil
	case HashingBcrypt:
		return BcryptHasher{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hashing mode %q", mode)
	}
}

// PlainHasher keeps the users.txt format readable: the credential is the password.
type PlainHasher struct{}

// Hash returns password unchanged.
func (PlainHasher) Hash(password string) (string, error) {
	return password, nil
}

// Compare checks password against the stored plaintext.
func (PlainHasher) Compare(credential, password string) error {
	if subtle.ConstantTimeCompare([]byte(credential), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// BcryptHasher stores salted bcrypt hashes.
type BcryptHasher struct {
	Cost int
}

// Hash generates a bcrypt hash of the password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare compares a bcrypt hashed password with its plaintext version.
func (BcryptHasher) Compare(credential, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
