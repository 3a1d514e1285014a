// Package token implements structural parsing of compact three-segment
// bearer tokens into typed payloads.
//
// # Token format
//
// Three base64url segments joined by '.': header, payload, signature.
// Only the payload segment is decoded. The signature is never verified —
// verification is a server responsibility, and payloads decoded here are
// only suitable for client-side lifecycle decisions (expiry banners,
// refresh scheduling), never for authorization.
//
// # Architecture boundaries
//
// This package owns structural validation and claim mapping. Expiry,
// issuer/audience, and required-claim policy are applied by the root
// package validator.
//
// # What this package must NOT do
//
//   - Verify signatures or trust any decoded claim.
//   - Perform I/O or read clocks.
//   - Import tokenward or any of its sub-packages.
package token
