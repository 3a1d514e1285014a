// Package store provides optional persistence for access/refresh token
// pairs across process restarts.
//
// The pair stays owned by the host application; a TokenStore is
// write-through convenience, not the source of truth. The keeper saves a
// pair after a successful refresh when persistence is enabled, and hosts
// load it on startup.
//
// # Architecture boundaries
//
// This package owns serialization and keyed lookup of pairs. Key choice
// (per user, per device) is the caller's concern; pair freshness is the
// validator's.
//
// # What this package must NOT do
//
//   - Parse, validate, or refresh tokens.
//   - Import tokenward, token, or refresh.
package store
