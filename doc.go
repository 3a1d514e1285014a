// Package tokenward provides a client-side token lifecycle keeper: unverified
// JWT payload parsing, policy validation, coalesced refresh exchange with
// bounded retry, and self-scheduling revalidation ahead of expiry.
//
// The package is designed for host applications (route guards, API clients,
// daemons) that own a token pair: Keeper methods are safe to call from
// multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tokenward is the public surface. It exposes [Keeper], [Builder], [Config],
// [Validator], and value types (ValidationResult, TokenPair, MetricsSnapshot,
// etc.). Validation sequencing lives under internal/; the wire exchange lives
// in the refresh sub-package; optional persistence in store.
//
// # What this package must NOT do
//
//   - Verify token signatures — payloads decoded here drive UX and
//     scheduling decisions only, never authorization.
//   - Own token storage: the pair is passed by value on each call and
//     remains the caller's property.
//   - Read environment variables — all configuration is injected.
//
// # Performance contract
//
// Validate is the hot path. It must not allocate beyond the returned
// payload and result structs and must complete without network round-trips.
// Refresh is allowed one HTTP exchange per in-flight window.
package tokenward
