package tokenward

import (
	"time"

	"github.com/tokenward/tokenward/internal/flows"
	"github.com/tokenward/tokenward/token"
)

// Validator defines a public type used by tokenward APIs.
//
// Validator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Validator struct {
	cfg     ValidatorConfig
	clock   Clock
	metrics *Metrics
}

// NewValidator describes the newvalidator operation and its observable behavior.
//
// NewValidator may return an error when input validation, dependency calls, or security checks fail.
// NewValidator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewValidator(cfg ValidatorConfig, clock Clock, metrics *Metrics) *Validator {
	if clock == nil {
		clock = SystemClock()
	}

	return &Validator{
		cfg:     cfg,
		clock:   clock,
		metrics: metrics,
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *Validator) Validate(raw string) (result ValidationResult) {
	start := v.clock.Now()

	// Any panic out of claim decoding is reported as a verification
	// failure instead of crashing the host application.
	defer func() {
		if r := recover(); r != nil {
			result = ValidationResult{ErrorKind: KindVerificationFailed}
			v.metrics.Inc(MetricValidateFailure)
		}
		v.metrics.Observe(MetricValidateLatency, v.clock.Now().Sub(start))
	}()

	flow := flows.RunValidate(raw, flows.ValidateDeps{
		Now:              v.clock.Now,
		Parse:            token.Parse,
		CheckExpiration:  v.cfg.CheckExpiration,
		CheckNotBefore:   v.cfg.CheckNotBefore,
		ValidateIssuer:   v.cfg.ValidateIssuer,
		ValidateAudience: v.cfg.ValidateAudience,
		ExpectedIssuer:   v.cfg.ExpectedIssuer,
		ExpectedAudience: v.cfg.ExpectedAudience,
		ClockSkew:        v.cfg.ClockSkewTolerance,
		RequiredClaims:   v.cfg.RequiredClaims,
		RefreshThreshold: v.cfg.RefreshThreshold,
	})

	result = ValidationResult{
		IsValid:      flow.Failure == flows.ValidateFailureNone,
		Payload:      flow.Payload,
		ErrorKind:    mapValidateFailure(flow.Failure),
		IsExpired:    flow.Expired,
		NeedsRefresh: flow.NeedsRefresh,
		TimeToExpiry: flow.TimeToExpiry,
	}

	v.recordValidateMetrics(result)

	return result
}

// TimeToExpiry describes the timetoexpiry operation and its observable behavior.
//
// TimeToExpiry may return an error when input validation, dependency calls, or security checks fail.
// TimeToExpiry does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *Validator) TimeToExpiry(payload *token.Payload) time.Duration {
	if payload == nil {
		return 0
	}

	remaining := payload.ExpiresAt.Sub(v.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (v *Validator) recordValidateMetrics(result ValidationResult) {
	if result.IsValid {
		v.metrics.Inc(MetricValidateSuccess)
		return
	}

	v.metrics.Inc(MetricValidateFailure)

	switch result.ErrorKind {
	case KindTokenExpired:
		v.metrics.Inc(MetricTokenExpired)
	case KindTokenNotActive:
		v.metrics.Inc(MetricTokenNotActive)
	case KindInvalidIssuer:
		v.metrics.Inc(MetricIssuerMismatch)
	case KindInvalidAudience:
		v.metrics.Inc(MetricAudienceMismatch)
	case KindMissingClaims:
		v.metrics.Inc(MetricMissingClaims)
	case KindInvalidFormat, KindMalformedPayload:
		v.metrics.Inc(MetricMalformedToken)
	}
}

func mapValidateFailure(kind flows.ValidateFailureKind) ErrorKind {
	switch kind {
	case flows.ValidateFailureNone:
		return KindNone
	case flows.ValidateFailureFormat:
		return KindInvalidFormat
	case flows.ValidateFailureMalformedPayload:
		return KindMalformedPayload
	case flows.ValidateFailureExpired:
		return KindTokenExpired
	case flows.ValidateFailureNotActive:
		return KindTokenNotActive
	case flows.ValidateFailureIssuer:
		return KindInvalidIssuer
	case flows.ValidateFailureAudience:
		return KindInvalidAudience
	case flows.ValidateFailureMissingClaims:
		return KindMissingClaims
	default:
		return KindVerificationFailed
	}
}
