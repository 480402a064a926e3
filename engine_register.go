package keel

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/keelauth/keel/email"
)

// RegisterRequest creates a new email+password account. VerifyURL, when
// set, is the frontend base the verification link points at.
type RegisterRequest struct {
	FullName  string
	Email     string
	Phone     string
	Password  string
	VerifyURL string
}

type RegisterResult struct {
	Account *Account
}

// Register creates an unverified account with a fresh verification token
// and sends the verification email. An unverified account already holding
// the email or phone is treated as an abandoned registration and replaced;
// a verified one is a conflict. Email delivery failure is logged, not
// fatal: the account exists either way and verification can be re-requested.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	reqEmail := canonicalEmail(req.Email)
	if reqEmail == "" || req.Password == "" || req.FullName == "" {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrInvalidInput, func() map[string]string {
			return map[string]string{"reason": "missing_fields"}
		})
		return nil, ErrInvalidInput
	}

	if err := e.clearConflictingAccount(ctx, reqEmail, req.Phone, ""); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", err, func() map[string]string {
				return map[string]string{"email": reqEmail}
			})
		}
		return nil, err
	}

	now := time.Now()
	tok, err := newVerificationToken(e.config.Verification.TokenBytes, e.config.Verification.EmailTokenTTL, now)
	if err != nil {
		return nil, internalErr(err)
	}

	passwordHash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrInvalidInput, func() map[string]string {
			return map[string]string{"email": reqEmail, "reason": "hash_failed"}
		})
		return nil, wrapErr(ErrInvalidInput, err)
	}

	account := &Account{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		Email:    reqEmail,
		Phone:    req.Phone,
		EmailVerification: EmailVerification{
			IsVerified:     false,
			HashedToken:    tok.Hashed,
			TokenExpiresAt: tok.ExpiresAt,
		},
		PasswordCredential: PasswordCredential{
			Hash: passwordHash,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := e.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", err, func() map[string]string {
				return map[string]string{"email": reqEmail}
			})
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"email": reqEmail, "reason": "store_create_failed"}
		})
		return nil, internalErr(err)
	}

	e.sendVerificationEmail(ctx, created.Email, tok.Plaintext, req.VerifyURL)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, "", nil, func() map[string]string {
		return map[string]string{"email": created.Email}
	})

	return &RegisterResult{Account: created}, nil
}

// clearConflictingAccount enforces the email/phone uniqueness rule shared by
// Register and UpdateProfile: a verified holder is a conflict, an unverified
// one is an abandoned registration and is conditionally deleted.
func (e *Engine) clearConflictingAccount(ctx context.Context, reqEmail, phone, excludeID string) error {
	existing, err := e.accounts.FindByEmailOrPhone(ctx, reqEmail, phone, excludeID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return internalErr(err)
	}

	if existing.EmailVerification.IsVerified {
		return ErrAccountExists
	}
	if _, err := e.accounts.DeleteUnverified(ctx, existing.ID); err != nil {
		return internalErr(err)
	}
	return nil
}

// sendVerificationEmail delivers the verification link best effort. The
// failure path is logged and audited but never surfaced to the caller.
func (e *Engine) sendVerificationEmail(ctx context.Context, to, token, baseURL string) {
	link := tokenLink(baseURL, token)
	hours := int(e.config.Verification.EmailTokenTTL / time.Hour)
	if hours < 1 {
		hours = 1
	}

	if err := e.emails.Send(ctx, to, email.VerificationMessage(link, hours)); err != nil {
		log.Printf("keel: verification email to %s failed: %v", to, err)
		e.metricInc(MetricEmailSendFailure)
		e.emitAudit(ctx, auditEventEmailSendFailure, false, "", "", ErrEmailDelivery, func() map[string]string {
			return map[string]string{"email": to, "kind": "verification"}
		})
	}
}

// tokenLink composes the emailed link. Without a base URL the raw token is
// delivered and the frontend path is left to the caller's template.
func tokenLink(baseURL, token string) string {
	if baseURL == "" {
		return token
	}
	return baseURL + "?token=" + token
}
