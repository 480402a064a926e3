package keel

import (
	"time"

	"github.com/keelauth/keel/internal"
)

// verificationToken is a freshly minted single-use token. Plaintext leaves
// the process exactly once, inside the outbound email; only Hashed and
// ExpiresAt are persisted.
type verificationToken struct {
	Plaintext string
	Hashed    string
	ExpiresAt time.Time
}

func newVerificationToken(byteLength int, ttl time.Duration, now time.Time) (verificationToken, error) {
	plaintext, err := internal.RandomToken(byteLength)
	if err != nil {
		return verificationToken{}, err
	}
	return verificationToken{
		Plaintext: plaintext,
		Hashed:    internal.Digest(plaintext),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// verificationTokenMatches reports whether the supplied plaintext matches
// the stored hash and the stored expiry is still in the future. The stored
// hash is compared in constant time and never surfaced to callers.
func verificationTokenMatches(plaintext, storedHash string, storedExpiry time.Time, now time.Time) bool {
	if plaintext == "" || storedHash == "" {
		return false
	}
	if storedExpiry.IsZero() || !storedExpiry.After(now) {
		return false
	}
	return internal.DigestEqual(internal.Digest(plaintext), storedHash)
}
