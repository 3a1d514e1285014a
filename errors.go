package tokenward

import "errors"

var (
	// ErrTokenInvalid is an exported constant or variable used by the token lifecycle keeper.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshTokenRequired is an exported constant or variable used by the token lifecycle keeper.
	ErrRefreshTokenRequired = errors.New("refresh token required")
	// ErrKeeperNotReady is an exported constant or variable used by the token lifecycle keeper.
	ErrKeeperNotReady = errors.New("keeper not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the token lifecycle keeper.
	ErrStoreUnavailable = errors.New("token store not configured")
)

// ErrorKind defines a public type used by tokenward APIs.
//
// ErrorKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ErrorKind uint8

const (
	// KindNone is an exported constant or variable used by the token lifecycle keeper.
	KindNone ErrorKind = iota
	// KindInvalidFormat is an exported constant or variable used by the token lifecycle keeper.
	KindInvalidFormat
	// KindInvalidSignature is an exported constant or variable used by the token lifecycle keeper.
	// Reserved: signatures are verified server-side, never here.
	KindInvalidSignature
	// KindTokenExpired is an exported constant or variable used by the token lifecycle keeper.
	KindTokenExpired
	// KindTokenNotActive is an exported constant or variable used by the token lifecycle keeper.
	KindTokenNotActive
	// KindInvalidIssuer is an exported constant or variable used by the token lifecycle keeper.
	KindInvalidIssuer
	// KindInvalidAudience is an exported constant or variable used by the token lifecycle keeper.
	KindInvalidAudience
	// KindMissingClaims is an exported constant or variable used by the token lifecycle keeper.
	KindMissingClaims
	// KindInvalidType is an exported constant or variable used by the token lifecycle keeper.
	// Reserved: token-type policy is not enforced client-side.
	KindInvalidType
	// KindMalformedPayload is an exported constant or variable used by the token lifecycle keeper.
	KindMalformedPayload
	// KindVerificationFailed is an exported constant or variable used by the token lifecycle keeper.
	KindVerificationFailed
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindInvalidFormat:
		return "INVALID_FORMAT"
	case KindInvalidSignature:
		return "INVALID_SIGNATURE"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenNotActive:
		return "TOKEN_NOT_ACTIVE"
	case KindInvalidIssuer:
		return "INVALID_ISSUER"
	case KindInvalidAudience:
		return "INVALID_AUDIENCE"
	case KindMissingClaims:
		return "MISSING_CLAIMS"
	case KindInvalidType:
		return "INVALID_TYPE"
	case KindMalformedPayload:
		return "MALFORMED_PAYLOAD"
	case KindVerificationFailed:
		return "VERIFICATION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ShouldForceReauth describes the shouldforcereauth operation and its observable behavior.
//
// ShouldForceReauth may return an error when input validation, dependency calls, or security checks fail.
// ShouldForceReauth does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ShouldForceReauth(kind ErrorKind) bool {
	switch kind {
	case KindTokenExpired, KindInvalidSignature, KindInvalidFormat, KindVerificationFailed:
		return true
	default:
		return false
	}
}
