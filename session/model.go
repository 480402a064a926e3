package session

import "time"

// Session is a single refresh-token grant. TokenHash is the hex SHA-256 of
// the plaintext refresh token and doubles as the storage key; the plaintext
// itself is never stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string

	CreatedAt int64
	UpdatedAt int64
	ExpiresAt int64
}

// Active reports whether the session is still usable at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.ExpiresAt > now.Unix()
}
