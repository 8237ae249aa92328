// Package hash wraps password hashing behind a narrow interface so
// services depend on a collaborator rather than the crypto library
// directly.
package hash

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and compares passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher is the default Hasher, using bcrypt's default cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a BcryptHasher with bcrypt.DefaultCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt digest of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare returns nil if password matches hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
