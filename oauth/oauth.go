package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/keelauth/keel"
)

// Provider turns an authorization-code callback into a verified identity.
// Implementations wrap one upstream identity provider each.
type Provider interface {
	// Name is the stable provider identifier stored on created accounts.
	Name() string

	// AuthCodeURL builds the URL the browser is redirected to. State must be
	// checked by the caller on callback; nonce is embedded where the
	// provider supports replay protection and ignored otherwise.
	AuthCodeURL(state, nonce string) string

	// Identity exchanges the callback code and returns the asserted
	// identity. An identity without a usable email fails with
	// keel.ErrOAuthEmailMissing.
	Identity(ctx context.Context, code, nonce string) (keel.OAuthIdentity, error)
}

// ErrExchangeFailed covers code-exchange and profile-fetch failures. The
// wrapped cause is for logs; callers treat all of them as a failed login.
var ErrExchangeFailed = errors.New("oauth exchange failed")

// State mints a random value for the OAuth state and nonce parameters.
func State() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
