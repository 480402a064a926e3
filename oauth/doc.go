// Package oauth adapts upstream identity providers (Google, GitHub) to the
// engine's provider-identity model.
//
// # Architecture boundaries
//
// This package talks to the outside world: it redirects browsers, exchanges
// authorization codes, and verifies ID tokens. What it hands back is a plain
// keel.OAuthIdentity; resolving that identity to an account, issuing tokens,
// and parking them behind a login code is the engine's job.
//
// # What this package must NOT do
//
//   - Touch account or session storage.
//   - Mint application tokens of any kind.
//   - Trust a provider email without the provider's own verification signal;
//     the EmailVerified flag is passed through untouched for the caller to
//     police.
package oauth
