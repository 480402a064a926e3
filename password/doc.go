// Package password implements password hashing and verification with bcrypt.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// complexity) is enforced by the caller before hashing.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Treat a missing stored hash as an error: [Hasher.Verify] returns false,
//     which is how OAuth-only accounts are kept out of password login.
//   - Import any other keel package.
package password
