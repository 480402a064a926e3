package keel

import (
	"context"
	"errors"
	"time"

	"github.com/keelauth/keel/internal"
	"github.com/keelauth/keel/session"
)

// Refresh rotates a refresh token: the presented token is atomically
// consumed and a brand-new pair is issued. Of concurrent calls presenting
// the same token exactly one wins; the rest see an invalid-token failure,
// which also covers a replayed token that was already rotated away.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *Account, error) {
	if e == nil || e.sessions == nil || e.accounts == nil {
		return nil, nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, nil, ErrTokenInvalid
	}

	sess, err := e.sessions.Consume(ctx, internal.Digest(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenInvalid, nil)
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, internalErr(err)
	}

	account, err := e.accounts.FindByID(ctx, sess.UserID)
	if err != nil {
		// Session outlived its account. The token is already consumed, so
		// nothing is left to clean up.
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.ID, ErrTokenInvalid, nil)
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, internalErr(err)
	}

	pair, newSess, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, account.ID, newSess.ID, nil, func() map[string]string {
		return map[string]string{"rotated_from": sess.ID}
	})
	return pair, account, nil
}

// Logout revokes the single session behind the presented refresh token.
// A token that maps to no live session, or to a session owned by a
// different account, fails with ErrSessionNotFound; the caller learns
// truthfully whether anything was revoked.
func (e *Engine) Logout(ctx context.Context, accountID, refreshToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrSessionNotFound
	}

	hash := internal.Digest(refreshToken)
	sess, err := e.sessions.FindActiveByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return internalErr(err)
	}
	if sess.UserID != accountID {
		return ErrSessionNotFound
	}

	if err := e.sessions.DeleteByHash(ctx, hash); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return internalErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, accountID, sess.ID, nil, nil)
	return nil
}

// LogoutAll revokes every session of the account. Succeeds even when the
// account holds no sessions.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrInvalidInput
	}

	if err := e.sessions.DeleteAllForUser(ctx, accountID); err != nil {
		return internalErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, nil)
	return nil
}

// AuthResult is a successfully authenticated request: the live account plus
// the verified access-token claims.
type AuthResult struct {
	Account *Account
	Claims  AccessClaims
}

// AccessClaims is the identity a verified access token asserts.
type AccessClaims struct {
	UserID string
	Email  string
}

// Authenticate validates an access token together with its refresh token.
// Both must verify AND agree on the owning account, and that account's
// refresh session must still be live. The pairing means a logout or a
// password-reset revocation invalidates requests immediately instead of at
// access-token expiry. Every failure collapses to ErrTokenInvalid.
func (e *Engine) Authenticate(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	if e == nil || e.tokens == nil || e.sessions == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if accessToken == "" || refreshToken == "" {
		return nil, ErrTokenInvalid
	}

	claims, err := e.tokens.Verify(accessToken)
	if err != nil {
		return nil, wrapErr(ErrTokenInvalid, err)
	}

	sess, err := e.sessions.FindActiveByHash(ctx, internal.Digest(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, internalErr(err)
	}
	if sess.UserID != claims.UserID {
		return nil, ErrTokenInvalid
	}

	account, err := e.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, internalErr(err)
	}
	if !account.IsActive {
		return nil, ErrTokenInvalid
	}
	if lockoutActive(account.Lockout, time.Now()) {
		return nil, ErrAccountLocked
	}

	return &AuthResult{
		Account: account,
		Claims:  AccessClaims{UserID: claims.UserID, Email: claims.Email},
	}, nil
}
