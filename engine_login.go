package keel

import (
	"context"
	"errors"
	"time"
)

// Login checks email+password credentials. An unknown email and a wrong
// password both come back as Valid=false without an error, so the transport
// layer maps them to the same Unauthorized response and leaks nothing about
// which field was wrong. OAuth-only, unverified, and locked accounts fail
// with their distinct typed errors; the credential holder already knows the
// email+password pair, so those states are safe to disclose.
func (e *Engine) Login(ctx context.Context, reqEmail, reqPassword string) (*LoginResult, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.accounts.FindByEmail(ctx, canonicalEmail(reqEmail))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "account_not_found"}
			})
			return &LoginResult{Valid: false}, nil
		}
		return nil, internalErr(err)
	}

	// No password comparison happens for a provider-created account, so no
	// failed attempt is recorded on this branch either.
	if account.OAuthOnly() {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrOAuthOnlyAccount, nil)
		return nil, ErrOAuthOnlyAccount
	}

	if !account.EmailVerification.IsVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrAccountUnverified, nil)
		return nil, ErrAccountUnverified
	}

	now := time.Now()
	if lockoutActive(account.Lockout, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, account.ID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if !e.hasher.Verify(account.PasswordCredential.Hash, reqPassword) {
		updated, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
			a.Lockout = recordFailedAttempt(a.Lockout, e.config.Lockout.MaxAttempts, e.config.Lockout.LockDuration, now)
			a.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, internalErr(err)
		}

		e.metricInc(MetricLoginFailure)
		if updated.Lockout.IsLocked {
			e.metricInc(MetricAccountLocked)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "wrong_password",
				"locked": boolString(updated.Lockout.IsLocked),
			}
		})
		return &LoginResult{Account: updated, Valid: false}, nil
	}

	updated, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
		if a.Lockout.FailedAttempts > 0 || a.Lockout.IsLocked {
			a.Lockout = resetLockout()
		}
		a.LastLoginAt = now
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, internalErr(err)
	}

	pair, sess, err := e.issueTokenPair(ctx, updated)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, updated.ID, sess.ID, nil, nil)

	return &LoginResult{Account: updated, Valid: true, Tokens: pair}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
