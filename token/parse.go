package token

import (
	"errors"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type defines a public type used by tokenward APIs.
//
// Type instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Type string

const (
	// TypeAccess is an exported constant or variable used by the token lifecycle keeper.
	TypeAccess Type = "access"
	// TypeRefresh is an exported constant or variable used by the token lifecycle keeper.
	TypeRefresh Type = "refresh"
)

var (
	// ErrMalformedToken is an exported constant or variable used by the token lifecycle keeper.
	ErrMalformedToken = errors.New("malformed token string")
	// ErrMalformedPayload is an exported constant or variable used by the token lifecycle keeper.
	ErrMalformedPayload = errors.New("malformed token payload")
	// ErrMissingCoreClaims is an exported constant or variable used by the token lifecycle keeper.
	ErrMissingCoreClaims = errors.New("token missing core claims")
)

// compactPattern matches header.payload.signature with base64url charsets.
// The signature segment may be empty (unsecured tokens are still decodable).
var compactPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`)

// Payload defines a public type used by tokenward APIs.
//
// Payload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Payload struct {
	Subject     string
	Issuer      string
	Audience    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	NotBefore   *time.Time
	Email       string
	Roles       []string
	Permissions []string
	SessionID   string
	TokenType   Type
}

type wireClaims struct {
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sid"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// Parse describes the parse operation and its observable behavior.
//
// Parse may return an error when input validation, dependency calls, or security checks fail.
// Parse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Parse(raw string) (*Payload, error) {
	if !compactPattern.MatchString(raw) {
		return nil, ErrMalformedToken
	}

	claims := &wireClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformedPayload
	}

	// Subject, expiry, and issued-at are the minimum required to reason
	// about validity; anything less is unusable.
	if claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrMissingCoreClaims
	}

	payload := &Payload{
		Subject:     claims.Subject,
		Issuer:      claims.Issuer,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
		Email:       claims.Email,
		Roles:       cloneStrings(claims.Roles),
		Permissions: cloneStrings(claims.Permissions),
		SessionID:   claims.SessionID,
		TokenType:   Type(claims.TokenType),
	}

	if len(claims.Audience) > 0 {
		payload.Audience = claims.Audience[0]
	}
	if claims.NotBefore != nil {
		nbf := claims.NotBefore.Time
		payload.NotBefore = &nbf
	}

	return payload, nil
}

// HasClaim describes the hasclaim operation and its observable behavior.
//
// HasClaim may return an error when input validation, dependency calls, or security checks fail.
// HasClaim does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Payload) HasClaim(name string) bool {
	if p == nil {
		return false
	}
	switch name {
	case "sub":
		return p.Subject != ""
	case "iss":
		return p.Issuer != ""
	case "aud":
		return p.Audience != ""
	case "exp":
		return !p.ExpiresAt.IsZero()
	case "iat":
		return !p.IssuedAt.IsZero()
	case "nbf":
		return p.NotBefore != nil
	case "email":
		return p.Email != ""
	case "sid":
		return p.SessionID != ""
	case "roles":
		return len(p.Roles) > 0
	case "permissions":
		return len(p.Permissions) > 0
	case "token_type":
		return p.TokenType != ""
	default:
		return false
	}
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
