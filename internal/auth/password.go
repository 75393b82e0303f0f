package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost 12: slow enough to resist offline brute force on commodity
// hardware while keeping interactive logins under ~300ms.
const hashCost = 12

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hashing backend unavailable: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against a stored hash.
// A malformed hash is an error, never a silent match.
func CheckPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return false, fmt.Errorf("hashing backend unavailable: %w", err)
}

// HashSecurityAnswer hashes a recovery-question answer. Answers are
// normalized (trimmed, lowercased) before hashing so "Fluffy " and
// "fluffy" verify against the same hash.
func HashSecurityAnswer(answer string) (string, error) {
	return HashPassword(normalizeAnswer(answer))
}

// CheckSecurityAnswer verifies a recovery-question answer against a hash
// produced by HashSecurityAnswer.
func CheckSecurityAnswer(answer, hash string) (bool, error) {
	return CheckPassword(normalizeAnswer(answer), hash)
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
