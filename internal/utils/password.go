package utils

import "golang.org/x/crypto/bcrypt"

// minBcryptCost is the floor for production hashing. Lower values are
// only acceptable in tests, which pass bcrypt.MinCost explicitly.
const minBcryptCost = 12

// HashPassword returns a bcrypt hash using the given cost. A cost
// below bcrypt's own minimum falls back to the configured floor.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = minBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
