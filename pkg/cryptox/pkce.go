package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// S256Challenge derives the PKCE code challenge for a verifier: the SHA-256
// digest of the verifier's raw bytes, base64url-encoded without padding
// (RFC 7636 section 4.2). Deterministic for a given verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
