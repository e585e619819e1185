// Package password hashes credentials with bcrypt and enforces the
// registration strength policy.
package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt silently truncates input at 72 bytes; reject instead.
	maxPasswordBytes = 72

	minCost = 10
	maxCost = 16
)

var (
	ErrTooShort    = errors.New("password below minimum length")
	ErrTooLong     = errors.New("password exceeds 72 bytes")
	ErrWeak        = errors.New("password must mix upper, lower, digit, and symbol characters")
	ErrHashInvalid = errors.New("stored password hash is malformed")
)

// Config tunes the hasher. Cost outside [10, 16] is rejected; MinLength
// below 8 falls back to 8.
type Config struct {
	Cost      int
	MinLength int
}

// Hasher is an immutable bcrypt codec. Safe for concurrent use.
type Hasher struct {
	cost      int
	minLength int
}

func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < minCost || cfg.Cost > maxCost {
		return nil, errors.New("bcrypt cost must be between 10 and 16")
	}
	if cfg.MinLength < 8 {
		cfg.MinLength = 8
	}
	return &Hasher{
		cost:      cfg.Cost,
		minLength: cfg.MinLength,
	}, nil
}

// Hash derives a bcrypt hash from password. It does not apply the strength
// policy; call [Hasher.ValidateStrength] first where policy applies.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches hash. A malformed hash returns
// ErrHashInvalid; a plain mismatch returns (false, nil).
func (h *Hasher) Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrHashInvalid
	}
}

// ValidateStrength applies the policy: minimum length in bytes plus all
// four character classes (upper, lower, digit, symbol).
func (h *Hasher) ValidateStrength(password string) error {
	if len(password) < h.minLength {
		return ErrTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrTooLong
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return ErrWeak
	}
	return nil
}
