// Package session provides Redis-backed persistence for refresh-token
// sessions, keyed by the hex SHA-256 of the plaintext token.
//
// # Rotation guarantee
//
// [Store.Consume] runs GET+DEL as a single Lua script. Two concurrent
// rotations of the same refresh token therefore resolve to exactly one
// winner; the loser observes a missing record.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT mint tokens, interpret JWTs, or enforce authentication policy —
// those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import keel or jwt (no upward imports).
//   - Store plaintext refresh tokens in [Session] fields.
package session
