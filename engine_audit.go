package keel

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterFailure          = "register_failure"
	auditEventRegisterDuplicate        = "register_duplicate"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginLocked              = "login_locked"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventEmailVerificationFailure = "email_verification_failure"
	auditEventEmailChangePending       = "email_change_pending"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventPasswordResetFailure     = "password_reset_failure"
	auditEventProfileUpdate            = "profile_update"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventOAuthLogin               = "oauth_login"
	auditEventOAuthAccountCreated      = "oauth_account_created"
	auditEventExchangeSuccess          = "login_exchange_success"
	auditEventExchangeFailure          = "login_exchange_failure"
	auditEventEmailSendFailure         = "email_send_failure"
)

// AuditErrorCode labels the error class on emitted events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrOAuthOnly          AuditErrorCode = "oauth_only_account"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrLoginCode          AuditErrorCode = "login_code_invalid"
	auditErrEmailDelivery      AuditErrorCode = "email_delivery_failed"
	auditErrEmailMissing       AuditErrorCode = "oauth_email_missing"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrVerificationTokenInvalid),
		errors.Is(err, ErrResetTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrOAuthOnlyAccount):
		return auditErrOAuthOnly
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrPendingEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSessionNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrLoginCodeInvalid):
		return auditErrLoginCode
	case errors.Is(err, ErrEmailDelivery):
		return auditErrEmailDelivery
	case errors.Is(err, ErrOAuthEmailMissing):
		return auditErrEmailMissing
	default:
		return auditErrInternal
	}
}
