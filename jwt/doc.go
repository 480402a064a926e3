// Package jwt issues and verifies HS256 access tokens carrying user identity
// claims, with issuer, audience, and algorithm pinned at construction.
//
// # Architecture boundaries
//
// This package owns token signing and validation only. Session lifetime,
// refresh rotation, and account state live in the Engine.
//
// # What this package must NOT do
//
//   - Distinguish failure causes to callers — every verification problem is
//     [ErrInvalidToken]; the wrapped cause exists for logging.
//   - Import any other keel package.
package jwt
