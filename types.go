package keel

import (
	"context"
	"time"

	"github.com/keelauth/keel/email"
	"github.com/keelauth/keel/session"
)

// EmailVerification tracks the verified state of the canonical email plus an
// optional in-flight email change. HashedToken/TokenExpiresAt serve both the
// initial verification and a pending-email confirmation.
type EmailVerification struct {
	IsVerified     bool
	HashedToken    string
	TokenExpiresAt time.Time
	PendingEmail   string
	Provider       string
}

// PasswordCredential holds the bcrypt hash and an optional in-flight reset
// token. Hash is empty for OAuth-only accounts.
type PasswordCredential struct {
	Hash                string
	HashedResetToken    string
	ResetTokenExpiresAt time.Time
}

// Lockout is the failed-attempt counter state. Callers must derive locked
// state from LockedUntil versus the current time, never from the flag alone.
type Lockout struct {
	IsLocked       bool
	LockedUntil    time.Time
	FailedAttempts uint32
}

// Account is the identity record.
type Account struct {
	ID       string
	FullName string
	Email    string
	Phone    string

	EmailVerification  EmailVerification
	PasswordCredential PasswordCredential
	Lockout            Lockout

	IsActive    bool
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OAuthOnly reports whether the account can never authenticate by password.
func (a *Account) OAuthOnly() bool {
	return a.PasswordCredential.Hash == "" && a.EmailVerification.Provider != ""
}

// TokenField selects which hashed-token pair a lookup matches against.
type TokenField int

const (
	TokenFieldEmailVerification TokenField = iota
	TokenFieldPasswordReset
)

// AccountStore is the persistence port for accounts.
//
// Update applies mutate under per-account serialization (read-modify-write
// at account granularity), which is what keeps concurrent failed-login
// increments from losing updates. Lookups return ErrAccountNotFound when no
// record matches.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByEmailOrPhone matches either field, skipping excludeID so a
	// profile update does not collide with the account being updated.
	// Empty email/phone arguments do not match anything.
	FindByEmailOrPhone(ctx context.Context, email, phone, excludeID string) (*Account, error)

	// FindByHashedTokenField matches the stored hash of the selected token
	// pair with an unexpired expiry relative to now.
	FindByHashedTokenField(ctx context.Context, field TokenField, hash string, now time.Time) (*Account, error)

	Create(ctx context.Context, account *Account) (*Account, error)
	Update(ctx context.Context, id string, mutate func(*Account) error) (*Account, error)

	// DeleteUnverified removes the account only while it is still
	// unverified, returning the number of records deleted. The conditional
	// guards against racing a concurrent verification.
	DeleteUnverified(ctx context.Context, id string) (int, error)
}

// SessionStore is the persistence port for refresh-token sessions. The
// production implementation is session.Store; memstore provides an
// in-memory one.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	FindActiveByHash(ctx context.Context, tokenHash string) (*session.Session, error)

	// Consume atomically removes and returns the session; of concurrent
	// calls for one hash exactly one succeeds.
	Consume(ctx context.Context, tokenHash string) (*session.Session, error)

	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// EmailSender delivers outbound mail. Implementations live in the email
// package.
type EmailSender interface {
	Send(ctx context.Context, to string, msg email.Message) error
}

// TokenPair is an issued access+refresh credential set. ExpiresIn is the
// access-token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult reports a credential check. Valid false with a non-nil Account
// means the password was wrong; Account nil means no such account.
type LoginResult struct {
	Account *Account
	Valid   bool
	Tokens  *TokenPair
}

// VerifyEmailResult reports a verification outcome. NewlyVerified is false
// when the account was already verified, which callers use to decide
// whether to also mint a token pair.
type VerifyEmailResult struct {
	Account       *Account
	NewlyVerified bool
	Tokens        *TokenPair
}
