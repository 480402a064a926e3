package keel

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/keelauth/keel/email"
	"github.com/keelauth/keel/jwt"
	"github.com/keelauth/keel/password"
	"github.com/keelauth/keel/session"
)

// Builder wires an Engine. A Builder is single-use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	accounts AccountStore
	sessions SessionStore
	emails   EmailSender

	auditSink AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the session store with Redis using the configured key
// prefix. Overridden by WithSessionStore.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithEmailSender sets the outbound mail transport. Defaults to a logging
// sender, which keeps development setups working without SMTP.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.emails = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewStore(b.redis, cfg.Session.KeyPrefix)
	}

	emails := b.emails
	if emails == nil {
		emails = email.NewLogSender(nil)
	}

	hasher, err := password.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AppName:   cfg.JWT.AppName,
		AccessTTL: cfg.JWT.AccessTTL,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		sessions: sessions,
		emails:   emails,
		hasher:   hasher,
		tokens:   tokens,
		exchange: newExchangeCache(cfg.Exchange),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
	}
	engine.exchange.start()

	b.built = true

	return engine, nil
}
