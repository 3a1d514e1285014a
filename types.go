package tokenward

import (
	"time"

	"github.com/tokenward/tokenward/token"
)

// TokenPair is the access/refresh credential pair owned by the host
// application and passed by value into keeper operations.
//
//	Docs: docs/keeper.md
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ValidationResult is returned by [Validator.Validate] and
// [Keeper.ValidateAndScheduleRefresh]. Payload is present whenever parsing
// succeeded, even when the token is invalid.
//
//	Docs: docs/validation.md
type ValidationResult struct {
	IsValid      bool
	Payload      *token.Payload
	ErrorKind    ErrorKind
	IsExpired    bool
	NeedsRefresh bool
	TimeToExpiry time.Duration
}

// OnRefreshed is the caller-supplied callback invoked at most once per
// successful refresh cycle, synchronously from the scheduled refresh
// continuation, with the new token pair.
type OnRefreshed func(pair TokenPair)

// State defines a public type used by tokenward APIs.
//
// State instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type State uint8

const (
	// StateIdle is an exported constant or variable used by the token lifecycle keeper.
	StateIdle State = iota
	// StateValidatedNoRefresh is an exported constant or variable used by the token lifecycle keeper.
	StateValidatedNoRefresh
	// StateRefreshScheduled is an exported constant or variable used by the token lifecycle keeper.
	StateRefreshScheduled
	// StateRefreshing is an exported constant or variable used by the token lifecycle keeper.
	StateRefreshing
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidatedNoRefresh:
		return "validated"
	case StateRefreshScheduled:
		return "refresh-scheduled"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
