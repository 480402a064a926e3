package keel

import (
	"context"
	"errors"
	"time"

	"github.com/keelauth/keel/internal"
)

// VerifyEmail consumes an email-verification token. On a match the account
// becomes verified and the token fields are cleared in the same update, so
// a second consume of the same plaintext finds nothing. A pending email
// change is promoted to the canonical address in that same update, after
// re-checking no other account claimed it meanwhile.
//
// NewlyVerified is false when the account was already verified (a pending
// email confirmation on a verified account); callers use it to decide
// whether to mint a token pair.
func (e *Engine) VerifyEmail(ctx context.Context, plaintextToken string) (*VerifyEmailResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now()
	hashed := internal.Digest(plaintextToken)

	account, err := e.accounts.FindByHashedTokenField(ctx, TokenFieldEmailVerification, hashed, now)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationFailure, false, "", "", ErrVerificationTokenInvalid, nil)
			return nil, ErrVerificationTokenInvalid
		}
		return nil, internalErr(err)
	}

	if account.EmailVerification.PendingEmail != "" {
		if _, err := e.accounts.FindByEmailOrPhone(ctx, account.EmailVerification.PendingEmail, "", account.ID); err == nil {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationFailure, false, account.ID, "", ErrPendingEmailTaken, func() map[string]string {
				return map[string]string{"pending_email": account.EmailVerification.PendingEmail}
			})
			return nil, ErrPendingEmailTaken
		} else if !errors.Is(err, ErrAccountNotFound) {
			return nil, internalErr(err)
		}
	}

	var newlyVerified bool
	updated, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
		// Re-match under the per-account update lock: the consume and its
		// effect commit together, which is what makes the token single-use.
		if !verificationTokenMatches(plaintextToken, a.EmailVerification.HashedToken, a.EmailVerification.TokenExpiresAt, now) {
			return ErrVerificationTokenInvalid
		}

		newlyVerified = !a.EmailVerification.IsVerified

		if a.EmailVerification.PendingEmail != "" {
			a.Email = a.EmailVerification.PendingEmail
			a.EmailVerification.PendingEmail = ""
		}
		a.EmailVerification.IsVerified = true
		a.EmailVerification.HashedToken = ""
		a.EmailVerification.TokenExpiresAt = time.Time{}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVerificationTokenInvalid) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationFailure, false, account.ID, "", ErrVerificationTokenInvalid, nil)
			return nil, ErrVerificationTokenInvalid
		}
		return nil, internalErr(err)
	}

	result := &VerifyEmailResult{Account: updated, NewlyVerified: newlyVerified}

	if newlyVerified {
		pair, sess, err := e.issueTokenPair(ctx, updated)
		if err != nil {
			return nil, err
		}
		result.Tokens = pair
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, updated.ID, sess.ID, nil, nil)
	} else {
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, updated.ID, "", nil, func() map[string]string {
			return map[string]string{"already_verified": "true"}
		})
	}

	e.metricInc(MetricEmailVerificationSuccess)
	return result, nil
}
