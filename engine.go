package keel

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keelauth/keel/internal"
	"github.com/keelauth/keel/jwt"
	"github.com/keelauth/keel/password"
	"github.com/keelauth/keel/session"
)

// Engine is the authentication orchestrator. Safe for concurrent use after
// construction through [Builder.Build].
type Engine struct {
	config   Config
	accounts AccountStore
	sessions SessionStore
	emails   EmailSender
	hasher   *password.Hasher
	tokens   *jwt.Manager
	exchange *exchangeCache
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close stops the background workers (audit dispatcher, exchange sweeper).
// Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.exchange != nil {
		e.exchange.close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies every engine counter at a point in time.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil || e.metrics == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// canonicalEmail is the case-insensitive canonical form every lookup and
// stored email uses.
func canonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issueTokenPair mints an access token and a refresh session for the
// account. The plaintext refresh token is returned exactly once; only its
// hash is persisted.
func (e *Engine) issueTokenPair(ctx context.Context, account *Account) (*TokenPair, *session.Session, error) {
	refreshToken, err := internal.RandomToken(e.config.Session.RefreshTokenBytes)
	if err != nil {
		return nil, nil, internalErr(err)
	}

	now := time.Now()
	sess := &session.Session{
		ID:        uuid.NewString(),
		UserID:    account.ID,
		TokenHash: internal.Digest(refreshToken),
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.RefreshTTL).Unix(),
	}

	if err := e.sessions.Save(ctx, sess, e.config.Session.RefreshTTL); err != nil {
		return nil, nil, internalErr(err)
	}
	e.metricInc(MetricSessionCreated)

	accessToken, err := e.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, nil, internalErr(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
	}, sess, nil
}
