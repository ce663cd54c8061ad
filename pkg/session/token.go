package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the number of random bytes behind each exam token. 32 bytes
// (256 bits) makes collision and guessing infeasible; the token is a bearer
// credential, so its entropy is a security property, not a tuning knob.
const tokenBytes = 32

// generateToken creates a cryptographically random exam token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
