// Package flows contains pure-function orchestrators for validator and
// keeper operations.
//
// Each flow function accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies. This design enables
// exhaustive unit testing with mock dependencies and keeps the root
// Validator and Keeper types thin.
//
// # Architecture boundaries
//
// Flow functions coordinate parsing, clock reads, and policy checks. They
// do NOT own any of these resources — ownership stays with the root
// package.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokenward (to avoid import cycles).
//   - Perform I/O directly — all I/O is mediated through dependency interfaces.
package flows
