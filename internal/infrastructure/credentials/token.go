package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// Tokens issues opaque session tokens. Only the SHA-256 digest is ever persisted.
type Tokens struct{}

func NewTokens() Tokens {
	return Tokens{}
}

func (Tokens) Generate() (string, error) {
	return GenerateSessionToken()
}

func (Tokens) Hash(token string) string {
	return HashToken(token)
}

func GenerateSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
