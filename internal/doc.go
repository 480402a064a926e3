// Package internal contains helper utilities that are intentionally private
// to keel: secure random token generation and digest helpers for
// token-at-rest storage.
//
// # What this package must NOT do
//
//   - Export types that appear in the public keel API.
//   - Be imported by any package outside the keel module.
package internal
