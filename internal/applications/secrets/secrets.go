// Package secrets issues and checks per-record edit tokens.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "nietos/pkg/domain-errors"
)

// TokenBytes is the entropy of a generated edit token.
const TokenBytes = 32

// Generate creates a cryptographically secure random edit token.
// Returns a base64url string carrying 256 bits of entropy.
func Generate() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate edit token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hasher hashes and verifies tokens at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher; out of range costs fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash creates a bcrypt hash of the token for storage.
func (h *Hasher) Hash(token string) (string, error) {
	if token == "" {
		return "", dErrors.New(dErrors.CodeValidation, "edit token cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "edit token is too long")
		}
		return "", fmt.Errorf("could not hash edit token: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a presented token against a stored hash. A mismatch is
// reported as CodeForbidden; anything else is an internal failure.
func (h *Hasher) Verify(token, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return dErrors.New(dErrors.CodeForbidden, "edit token does not match")
		}
		return fmt.Errorf("could not verify edit token: %w", err)
	}
	return nil
}
