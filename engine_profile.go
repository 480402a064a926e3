package keel

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/keelauth/keel/email"
)

// ProfileUpdate carries the fields a profile update may change. Zero-value
// fields are left untouched. Email is the requested new address; it takes
// effect only after the owner confirms it from the new mailbox.
type ProfileUpdate struct {
	FullName  string
	Phone     string
	Email     string
	Password  string
	VerifyURL string
}

// ProfileUpdateResult reports what the update changed. PendingEmail is set
// when a confirmation email went out to a new address. PasswordChanged lets
// the transport pick its response message: a password change outranks a plain
// profile edit.
type ProfileUpdateResult struct {
	Account         *Account
	PendingEmail    string
	PasswordChanged bool
}

// UpdateProfile applies a partial profile update. An email change is staged
// as a pending address with a fresh confirmation token mailed to the new
// mailbox; if that mail cannot be sent the staged fields are rolled back so
// the account never holds an unconfirmable pending address. An update with
// nothing to change succeeds without touching the record.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, req ProfileUpdate) (*ProfileUpdateResult, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internalErr(err)
	}

	now := time.Now()

	newEmail := canonicalEmail(req.Email)
	emailChanging := newEmail != "" && newEmail != account.Email
	phoneChanging := req.Phone != "" && req.Phone != account.Phone
	nameChanging := req.FullName != "" && req.FullName != account.FullName
	passwordChanging := req.Password != ""

	if !emailChanging && !phoneChanging && !nameChanging && !passwordChanging {
		return &ProfileUpdateResult{Account: account}, nil
	}

	if emailChanging || phoneChanging {
		conflictEmail := ""
		if emailChanging {
			conflictEmail = newEmail
		}
		conflictPhone := ""
		if phoneChanging {
			conflictPhone = req.Phone
		}
		if err := e.clearConflictingAccount(ctx, conflictEmail, conflictPhone, account.ID); err != nil {
			return nil, err
		}
	}

	var newHash string
	if passwordChanging {
		newHash, err = e.hasher.Hash(req.Password)
		if err != nil {
			return nil, wrapErr(ErrInvalidInput, err)
		}
	}

	var tok verificationToken
	if emailChanging {
		tok, err = newVerificationToken(e.config.Verification.TokenBytes, e.config.Verification.EmailTokenTTL, now)
		if err != nil {
			return nil, internalErr(err)
		}
	}

	updated, err := e.accounts.Update(ctx, account.ID, func(a *Account) error {
		if nameChanging {
			a.FullName = req.FullName
		}
		if phoneChanging {
			a.Phone = req.Phone
		}
		if passwordChanging {
			a.PasswordCredential.Hash = newHash
		}
		if emailChanging {
			a.EmailVerification.PendingEmail = newEmail
			a.EmailVerification.HashedToken = tok.Hashed
			a.EmailVerification.TokenExpiresAt = tok.ExpiresAt
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, internalErr(err)
	}

	result := &ProfileUpdateResult{Account: updated, PasswordChanged: passwordChanging}

	if emailChanging {
		hours := int(e.config.Verification.EmailTokenTTL / time.Hour)
		if hours < 1 {
			hours = 1
		}
		// The confirmation goes to the NEW address: only its owner may
		// approve the change.
		if sendErr := e.emails.Send(ctx, newEmail, email.VerificationMessage(tokenLink(req.VerifyURL, tok.Plaintext), hours)); sendErr != nil {
			e.metricInc(MetricEmailSendFailure)
			e.emitAudit(ctx, auditEventEmailSendFailure, false, account.ID, "", ErrEmailDelivery, func() map[string]string {
				return map[string]string{"email": newEmail, "kind": "email_change"}
			})

			// Roll the staged change back; a pending address nobody can
			// confirm would wedge future change attempts.
			if _, rbErr := e.accounts.Update(ctx, account.ID, func(a *Account) error {
				if a.EmailVerification.PendingEmail == newEmail && a.EmailVerification.HashedToken == tok.Hashed {
					a.EmailVerification.PendingEmail = ""
					a.EmailVerification.HashedToken = ""
					a.EmailVerification.TokenExpiresAt = time.Time{}
					a.UpdatedAt = time.Now()
				}
				return nil
			}); rbErr != nil {
				log.Printf("keel: email change rollback for account %s failed: %v", account.ID, rbErr)
			}
			return nil, wrapErr(ErrEmailDelivery, sendErr)
		}

		result.PendingEmail = newEmail
		e.emitAudit(ctx, auditEventEmailChangePending, true, account.ID, "", nil, func() map[string]string {
			return map[string]string{"pending_email": newEmail}
		})
	}

	e.metricInc(MetricProfileUpdate)
	e.emitAudit(ctx, auditEventProfileUpdate, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{
			"name_changed":     boolString(nameChanging),
			"phone_changed":    boolString(phoneChanging),
			"password_changed": boolString(passwordChanging),
			"email_pending":    boolString(emailChanging),
		}
	})

	return result, nil
}
