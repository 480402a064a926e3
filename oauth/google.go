package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/keelauth/keel"
)

const googleIssuer = "https://accounts.google.com"

// GoogleConfig configures the Google OIDC provider. IssuerURL and HTTPClient
// exist so tests can point discovery at a local server; production leaves
// both zero.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	HTTPClient   *http.Client
}

// Google authenticates through Google's OIDC flow. The identity comes from a
// verified ID token, not from a userinfo call, so the email and name claims
// carry Google's signature.
type Google struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// NewGoogle discovers the issuer's endpoints and builds the provider.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google oauth: client id and secret required")
	}

	issuer := cfg.IssuerURL
	if issuer == "" {
		issuer = googleIssuer
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("google oauth: discovery: %w", err)
	}

	endpoint := google.Endpoint
	if issuer != googleIssuer {
		endpoint = provider.Endpoint()
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		client:   cfg.HTTPClient,
	}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthCodeURL(state, nonce string) string {
	return g.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oidc.Nonce(nonce),
	)
}

// Identity exchanges the code, verifies the returned ID token against the
// issuer's keys, and checks its nonce against the one minted at the start of
// the flow.
func (g *Google) Identity(ctx context.Context, code, nonce string) (keel.OAuthIdentity, error) {
	if g.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: no id_token in response", ErrExchangeFailed)
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: id_token verify: %v", ErrExchangeFailed, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Nonce         string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: id_token claims: %v", ErrExchangeFailed, err)
	}
	if nonce != "" && claims.Nonce != nonce {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: nonce mismatch", ErrExchangeFailed)
	}
	if claims.Email == "" {
		return keel.OAuthIdentity{}, keel.ErrOAuthEmailMissing
	}

	return keel.OAuthIdentity{
		Provider:      g.Name(),
		Email:         claims.Email,
		FullName:      claims.Name,
		AvatarURL:     claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
