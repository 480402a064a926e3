package keel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OAuthIdentity is the provider-asserted identity handed to the resolver
// after a provider callback completed. Provider names the source ("google",
// "github"); EmailVerified reflects the provider's own claim. AvatarURL is
// carried for the caller; the account record does not store it.
type OAuthIdentity struct {
	Provider      string
	Email         string
	FullName      string
	AvatarURL     string
	EmailVerified bool
}

// OAuthLoginResult is a completed provider login: the resolved account, its
// fresh token pair, and the one-time code the frontend exchanges for the pair.
type OAuthLoginResult struct {
	Account   *Account
	Tokens    *TokenPair
	LoginCode string
	Created   bool
}

// ResolveOAuthAccount maps a provider identity onto a local account. Matching
// is by canonical email: an existing account is returned exactly as stored,
// with no field merged in from the provider. In particular a provider login
// never flips an unverified password registration to verified; the password
// set by whoever registered that address stays gated behind the email round
// trip. Absent a match, a verified account with no password hash is minted.
// The provider vouched for mailbox ownership, so no verification email goes
// out for a created account.
func (e *Engine) ResolveOAuthAccount(ctx context.Context, identity OAuthIdentity) (*Account, bool, error) {
	if e == nil || e.accounts == nil {
		return nil, false, ErrEngineNotReady
	}

	reqEmail := canonicalEmail(identity.Email)
	if reqEmail == "" {
		return nil, false, ErrOAuthEmailMissing
	}

	now := time.Now()

	account, err := e.accounts.FindByEmail(ctx, reqEmail)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, internalErr(err)
	}

	account = &Account{
		ID:       uuid.NewString(),
		FullName: identity.FullName,
		Email:    reqEmail,
		EmailVerification: EmailVerification{
			IsVerified: true,
			Provider:   identity.Provider,
		},
		IsActive:    true,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := e.accounts.Create(ctx, account)
	if err != nil {
		// Lost a race with a concurrent resolver for the same email; the
		// winner's account is the one to use.
		if errors.Is(err, ErrAccountExists) {
			existing, findErr := e.accounts.FindByEmail(ctx, reqEmail)
			if findErr != nil {
				return nil, false, internalErr(findErr)
			}
			return existing, false, nil
		}
		return nil, false, internalErr(err)
	}

	e.emitAudit(ctx, auditEventOAuthAccountCreated, true, created.ID, "", nil, func() map[string]string {
		return map[string]string{"provider": identity.Provider, "email": created.Email}
	})
	return created, true, nil
}

// CompleteOAuthLogin finishes a provider callback: the identity is resolved
// to an account, a token pair is issued, and the pair is parked behind a
// one-time login code for the frontend to exchange. The code is what goes
// into the redirect URL; the tokens never transit the browser address bar.
func (e *Engine) CompleteOAuthLogin(ctx context.Context, identity OAuthIdentity) (*OAuthLoginResult, error) {
	if e == nil || e.exchange == nil {
		return nil, ErrEngineNotReady
	}

	account, created, err := e.ResolveOAuthAccount(ctx, identity)
	if err != nil {
		return nil, err
	}

	pair, sess, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	code, err := e.exchange.put(account, *pair, time.Now())
	if err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, auditEventOAuthLogin, true, account.ID, sess.ID, nil, func() map[string]string {
		return map[string]string{"provider": identity.Provider, "created": boolString(created)}
	})

	return &OAuthLoginResult{
		Account:   account,
		Tokens:    pair,
		LoginCode: code,
		Created:   created,
	}, nil
}

// ExchangeLoginCode redeems a one-time login code for its parked token pair.
// Unknown, expired, and already-redeemed codes are indistinguishable to the
// caller.
func (e *Engine) ExchangeLoginCode(ctx context.Context, code string) (*Account, *TokenPair, error) {
	if e == nil || e.exchange == nil {
		return nil, nil, ErrEngineNotReady
	}

	entry, ok := e.exchange.take(code, time.Now())
	if !ok {
		e.metricInc(MetricExchangeMiss)
		e.emitAudit(ctx, auditEventExchangeFailure, false, "", "", ErrLoginCodeInvalid, nil)
		return nil, nil, ErrLoginCodeInvalid
	}

	e.metricInc(MetricExchangeHit)
	e.emitAudit(ctx, auditEventExchangeSuccess, true, entry.account.ID, "", nil, nil)

	tokens := entry.tokens
	return entry.account, &tokens, nil
}
