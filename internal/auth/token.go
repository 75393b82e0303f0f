package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of every opaque credential issued here:
// session tokens, reset tokens, verification tokens.
const tokenBytes = 32

// GenerateSecureToken returns a 64-character hex string drawn from the
// OS CSPRNG. Tokens are never derived from timestamps or counters.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
