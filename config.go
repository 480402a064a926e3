package keel

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// JWTConfig controls access-token signing. AppName is both issuer and
// audience on every token.
type JWTConfig struct {
	Secret    []byte
	AppName   string
	AccessTTL time.Duration
	Leeway    time.Duration
}

// PasswordConfig controls bcrypt hashing.
type PasswordConfig struct {
	BcryptCost int
}

// LockoutConfig controls the failed-attempt policy.
type LockoutConfig struct {
	MaxAttempts  uint32
	LockDuration time.Duration
}

// VerificationConfig controls single-use verification tokens.
type VerificationConfig struct {
	TokenBytes    int
	EmailTokenTTL time.Duration
	ResetTokenTTL time.Duration
}

// SessionConfig controls refresh-token sessions.
type SessionConfig struct {
	RefreshTokenBytes int
	RefreshTTL        time.Duration
	KeyPrefix         string
}

// ExchangeConfig controls the one-time login-code cache bridging OAuth
// redirects to token retrieval.
type ExchangeConfig struct {
	CodeBytes     int
	TTL           time.Duration
	SweepInterval time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// Config is immutable after Build.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Verification VerificationConfig
	Session      SessionConfig
	Exchange     ExchangeConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// DefaultConfig returns the baseline configuration. JWT.Secret and
// JWT.AppName have no sensible defaults and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Leeway:    30 * time.Second,
		},
		Password: PasswordConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			LockDuration: 30 * time.Minute,
		},
		Verification: VerificationConfig{
			TokenBytes:    20,
			EmailTokenTTL: 24 * time.Hour,
			ResetTokenTTL: 30 * time.Minute,
		},
		Session: SessionConfig{
			RefreshTokenBytes: 40,
			RefreshTTL:        7 * 24 * time.Hour,
			KeyPrefix:         "sess",
		},
		Exchange: ExchangeConfig{
			CodeBytes:     24,
			TTL:           2 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT.Secret must be at least 32 bytes")
	}
	if c.JWT.AppName == "" {
		return errors.New("JWT.AppName is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway out of range")
	}
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return errors.New("Password.BcryptCost out of range")
	}
	if c.Lockout.MaxAttempts == 0 {
		return errors.New("Lockout.MaxAttempts must be positive")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout.LockDuration must be positive")
	}
	if c.Verification.TokenBytes < 16 {
		return errors.New("Verification.TokenBytes must be at least 16")
	}
	if c.Verification.EmailTokenTTL <= 0 {
		return errors.New("Verification.EmailTokenTTL must be positive")
	}
	if c.Verification.ResetTokenTTL <= 0 {
		return errors.New("Verification.ResetTokenTTL must be positive")
	}
	if c.Session.RefreshTokenBytes < 32 {
		return errors.New("Session.RefreshTokenBytes must be at least 32")
	}
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session.RefreshTTL must be positive")
	}
	if c.Exchange.CodeBytes < 16 {
		return errors.New("Exchange.CodeBytes must be at least 16")
	}
	if c.Exchange.TTL <= 0 {
		return errors.New("Exchange.TTL must be positive")
	}
	if c.Exchange.SweepInterval <= 0 {
		return errors.New("Exchange.SweepInterval must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}
