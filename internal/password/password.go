// Package password hashes and verifies account passwords.
package password

import (
	"github.com/relay-id/authsvc/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// Hasher defines the contract for password operations. An interface so
// internal/authsvc can be tested against a cheap fake.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher builds a hasher at the given bcrypt cost. A cost of 0
// or less means cost 12.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = 12
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "hash password: %v", err)
	}
	return string(bytes), nil
}

// Verify returns nil when plain matches hash, WrongPassword otherwise.
func (h *BcryptHasher) Verify(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return apperr.New(apperr.WrongPassword, "password does not match")
	}
	return nil
}

var _ Hasher = (*BcryptHasher)(nil)
