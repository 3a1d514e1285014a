package flows

import (
	"errors"
	"time"

	"github.com/tokenward/tokenward/token"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureFormat
	ValidateFailureMalformedPayload
	ValidateFailureExpired
	ValidateFailureNotActive
	ValidateFailureIssuer
	ValidateFailureAudience
	ValidateFailureMissingClaims
)

// ValidateResult carries either the accepted payload and derived refresh
// hints or failure metadata.
type ValidateResult struct {
	Failure      ValidateFailureKind
	Payload      *token.Payload
	Expired      bool
	NeedsRefresh bool
	TimeToExpiry time.Duration
}

// ValidateDeps captures validation flow dependencies.
type ValidateDeps struct {
	Now              func() time.Time
	Parse            func(string) (*token.Payload, error)
	CheckExpiration  bool
	CheckNotBefore   bool
	ValidateIssuer   bool
	ValidateAudience bool
	ExpectedIssuer   string
	ExpectedAudience string
	ClockSkew        time.Duration
	RequiredClaims   []string
	RefreshThreshold time.Duration
}

// RunValidate executes the validation sequence without root package
// dependencies. Check order is fixed: structure, expiry, not-before,
// issuer, audience, required claims. Expiry wins ties when several
// conditions fail at once.
func RunValidate(raw string, deps ValidateDeps) ValidateResult {
	payload, err := deps.Parse(raw)
	if err != nil {
		if errors.Is(err, token.ErrMalformedToken) {
			return ValidateResult{Failure: ValidateFailureFormat}
		}
		return ValidateResult{Failure: ValidateFailureMalformedPayload}
	}

	now := deps.Now()

	if deps.CheckExpiration {
		// Expired when now >= exp + skew; the boundary instant itself
		// counts as expired.
		if !now.Before(payload.ExpiresAt.Add(deps.ClockSkew)) {
			return ValidateResult{
				Failure: ValidateFailureExpired,
				Payload: payload,
				Expired: true,
			}
		}
	}

	if deps.CheckNotBefore && payload.NotBefore != nil {
		if now.Before(payload.NotBefore.Add(-deps.ClockSkew)) {
			return ValidateResult{
				Failure: ValidateFailureNotActive,
				Payload: payload,
			}
		}
	}

	if deps.ValidateIssuer && payload.Issuer != deps.ExpectedIssuer {
		return ValidateResult{
			Failure: ValidateFailureIssuer,
			Payload: payload,
		}
	}

	if deps.ValidateAudience && payload.Audience != deps.ExpectedAudience {
		return ValidateResult{
			Failure: ValidateFailureAudience,
			Payload: payload,
		}
	}

	for _, claim := range deps.RequiredClaims {
		if !payload.HasClaim(claim) {
			return ValidateResult{
				Failure: ValidateFailureMissingClaims,
				Payload: payload,
			}
		}
	}

	remaining := payload.ExpiresAt.Sub(now)
	ttl := remaining
	if ttl < 0 {
		ttl = 0
	}

	return ValidateResult{
		Failure:      ValidateFailureNone,
		Payload:      payload,
		NeedsRefresh: remaining <= deps.RefreshThreshold,
		TimeToExpiry: ttl,
	}
}
