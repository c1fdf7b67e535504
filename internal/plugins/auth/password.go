package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the credential hasher. bcrypt embeds the salt and cost
// in its output, so Verify needs nothing but the stored hash.
type Hasher struct {
	cost int

	decoyOnce sync.Once
	decoy     []byte
}

// NewHasher creates a hasher with the given bcrypt work factor.
// Costs outside bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Errors only on inputs bcrypt
// cannot accept (over 72 bytes) or a failing entropy source.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a
// mismatch, not an error.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyAbsent spends the same bcrypt work as Verify for an account that
// does not exist, so login timing does not reveal which emails are
// registered. It always reports a mismatch.
func (h *Hasher) VerifyAbsent(plaintext string) bool {
	h.decoyOnce.Do(func() {
		// Hashed at this hasher's cost so the compare takes as long as a real one.
		h.decoy, _ = bcrypt.GenerateFromPassword([]byte("wellnest-absent-account"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(plaintext))
	return false
}
