// Package keel is an authentication engine for email+password and OAuth
// logins: bcrypt credentials, HS256 access tokens, rotating opaque refresh
// tokens, single-use email-verification and password-reset tokens, and a
// failed-attempt lockout policy.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// keel is the public surface. It exposes [Engine], [Builder], [Config], the
// storage ports ([AccountStore], [SessionStore], [EmailSender]), and value
// types. Token signing lives in jwt, hashing in password, the Redis session
// store in session, mail transports in email, provider adapters in oauth,
// and in-memory port implementations in memstore.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or wire encodings in its
//     public API.
//   - Store any plaintext secret: passwords, refresh tokens, and
//     verification tokens are persisted only as hashes.
//   - Import a sub-package that re-imports keel (no import cycles).
package keel
