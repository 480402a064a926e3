// Package memstore provides in-memory implementations of the engine's
// storage ports, intended for tests and single-process development setups.
//
// # Architecture boundaries
//
// Both stores honor the port contracts exactly: per-account serialization on
// AccountStore.Update and atomic single-winner semantics on
// SessionStore.Consume. Anything an engine test observes against memstore
// must hold against the production stores too.
//
// # What this package must NOT do
//
//   - Persist anything. Process exit loses all state.
//   - Relax a port invariant for convenience.
package memstore
