// Package security wraps bcrypt for the one secret holod ever hashes at
// rest: the operator-held admin-claim secret (auth.BootstrapAdminSecret).
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost balances hashing latency against brute-force
// resistance for a secret hashed once at startup and verified rarely.
const DefaultBcryptCost = 10

// HashSecret bcrypt-hashes secret at DefaultBcryptCost.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// HashSecretWithCost hashes secret at an explicit cost, for callers that
// need to tune beyond DefaultBcryptCost.
func HashSecretWithCost(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("invalid cost %d: must be between %d and %d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether secret matches hash, returning
// bcrypt.ErrMismatchedHashAndPassword (or a parse error) on mismatch.
func VerifySecret(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// NeedsRehash reports whether hash was produced at a cost other than
// the desired one, so a caller can opportunistically upgrade it.
func NeedsRehash(hash string, cost int) (bool, error) {
	actualCost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("read hash cost: %w", err)
	}
	return actualCost != cost, nil
}
