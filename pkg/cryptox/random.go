package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
	// TokenSize512 provides 512 bits of entropy (86 chars base64url).
	TokenSize512 = 64
)

// RandomString creates a cryptographically secure random string of exactly
// length characters drawn from [a-zA-Z0-9]. Unlike GenerateToken the output
// length is the requested character count, not a function of byte size, which
// matters for protocol fields with fixed length requirements.
// Returns an error if the random number generator fails.
func RandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("string length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumeric))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		buf[i] = alphanumeric[n.Int64()]
	}
	return string(buf), nil
}

// MustRandomString is like RandomString but panics on error. Entropy failure
// means the process cannot mint unguessable protocol values and must not
// proceed.
func MustRandomString(length int) string {
	s, err := RandomString(length)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate random string: %v", err))
	}
	return s
}

// GenerateToken mints a random opaque credential of the given byte size,
// returned base64url-encoded without padding. Use it where the consumer
// treats the value as an opaque blob rather than a fixed-width protocol
// field: authorization codes, refresh tokens, API keys.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is like GenerateToken but panics on error.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}
