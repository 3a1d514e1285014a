// Package refresh implements the coalesced, retried token-exchange client.
//
// # Exchange contract
//
// A refresh is a POST to the configured endpoint carrying the refresh
// token both as a bearer Authorization header and as a JSON body field
// ("refresh_token"). A 2xx response yields the new pair: the access token
// is read from "session_token" or "access_token" (either naming is
// accepted), the rotated refresh token from "refresh_token", and the
// access lifetime from "expires_in" seconds with [DefaultExpiresIn] as
// the fallback.
//
// # Coalescing invariant
//
// For all concurrent callers within one in-flight window, exactly one
// network request cycle is issued; every caller receives the same
// outcome. Attempts within a cycle are strictly sequential.
//
// # Architecture boundaries
//
// This package owns the wire exchange, retry pacing, and the in-flight
// guard. Scheduling (when to refresh) and token ownership stay with the
// root keeper and its caller.
//
// # What this package must NOT do
//
//   - Parse or validate token payloads.
//   - Import tokenward or token.
//   - Panic or surface transport errors as anything but Outcome fields.
package refresh
