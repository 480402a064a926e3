package keel

import (
	"context"
	"errors"
	"time"

	"github.com/keelauth/keel/email"
	"github.com/keelauth/keel/internal"
)

// ForgotPassword mints a password-reset token and emails it. The call
// reports success whether or not the email maps to an account, so the
// endpoint cannot be used as an existence oracle. Delivery failure on a
// real account does surface: without the email the token is unreachable.
func (e *Engine) ForgotPassword(ctx context.Context, reqEmail, redirectURL string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	account, err := e.accounts.FindByEmail(ctx, canonicalEmail(reqEmail))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_account": "false"}
			})
			return nil
		}
		return internalErr(err)
	}

	now := time.Now()
	tok, err := newVerificationToken(e.config.Verification.TokenBytes, e.config.Verification.ResetTokenTTL, now)
	if err != nil {
		return internalErr(err)
	}

	// The existing password hash stays untouched until the token is
	// consumed.
	if _, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
		a.PasswordCredential.HashedResetToken = tok.Hashed
		a.PasswordCredential.ResetTokenExpiresAt = tok.ExpiresAt
		a.UpdatedAt = now
		return nil
	}); err != nil {
		return internalErr(err)
	}

	minutes := int(e.config.Verification.ResetTokenTTL / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if err := e.emails.Send(ctx, account.Email, email.ResetMessage(tokenLink(redirectURL, tok.Plaintext), minutes)); err != nil {
		e.metricInc(MetricEmailSendFailure)
		e.emitAudit(ctx, auditEventEmailSendFailure, false, account.ID, "", ErrEmailDelivery, func() map[string]string {
			return map[string]string{"email": account.Email, "kind": "password_reset"}
		})
		return wrapErr(ErrEmailDelivery, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"known_account": "true"}
	})
	return nil
}

// ResetPassword consumes a reset token and installs the new password. A
// successful reset proves mailbox ownership, so a locked account unlocks
// and an unverified one becomes verified in the same update. Every session
// is revoked afterwards, forcing a fresh login everywhere.
func (e *Engine) ResetPassword(ctx context.Context, plaintextToken, newPassword string) (*Account, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if newPassword == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now()
	hashed := internal.Digest(plaintextToken)

	account, err := e.accounts.FindByHashedTokenField(ctx, TokenFieldPasswordReset, hashed, now)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetFailure, false, "", "", ErrResetTokenInvalid, nil)
			return nil, ErrResetTokenInvalid
		}
		return nil, internalErr(err)
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, wrapErr(ErrInvalidInput, err)
	}

	updated, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
		if !verificationTokenMatches(plaintextToken, a.PasswordCredential.HashedResetToken, a.PasswordCredential.ResetTokenExpiresAt, now) {
			return ErrResetTokenInvalid
		}

		a.PasswordCredential.Hash = newHash
		a.PasswordCredential.HashedResetToken = ""
		a.PasswordCredential.ResetTokenExpiresAt = time.Time{}

		a.Lockout = resetLockout()

		if !a.EmailVerification.IsVerified {
			a.EmailVerification.IsVerified = true
			a.EmailVerification.HashedToken = ""
			a.EmailVerification.TokenExpiresAt = time.Time{}
			// The verification token also served any pending change; with
			// it gone the pending address is unconfirmable, so drop it.
			a.EmailVerification.PendingEmail = ""
		}

		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetFailure, false, account.ID, "", ErrResetTokenInvalid, nil)
			return nil, ErrResetTokenInvalid
		}
		return nil, internalErr(err)
	}

	if err := e.sessions.DeleteAllForUser(ctx, updated.ID); err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, updated.ID, "", nil, nil)
	return updated, nil
}
