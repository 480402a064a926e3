package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// RefreshTokenBytes is the raw size of a refresh-token secret before encoding.
const RefreshTokenBytes = 40

// RandomToken returns byteLength cryptographically random bytes hex-encoded,
// so the result is always 2*byteLength characters. A zero length yields the
// empty string.
func RandomToken(byteLength int) (string, error) {
	if byteLength < 0 {
		return "", errors.New("negative token length")
	}
	if byteLength == 0 {
		return "", nil
	}

	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Digest returns the hex SHA-256 of data. Used for token-at-rest and
// refresh-token storage, never for passwords.
func Digest(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two hex digests in constant time.
func DigestEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomCode returns a compact base64url one-time code. Used for the OAuth
// login-exchange bridge where the code travels in a redirect URL.
func RandomCode(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("invalid code length")
	}

	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
