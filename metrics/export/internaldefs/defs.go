package internaldefs

import (
	tokenward "github.com/tokenward/tokenward"
)

// CounterDef defines a public type used by tokenward APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by tokenward APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token lifecycle keeper.
var CounterDefs = []CounterDef{
	{ID: tokenward.MetricValidateSuccess, Name: "tokenward_validate_success_total", Help: "Token validations that passed every check."},
	{ID: tokenward.MetricValidateFailure, Name: "tokenward_validate_failure_total", Help: "Token validations that failed any check."},
	{ID: tokenward.MetricTokenExpired, Name: "tokenward_token_expired_total", Help: "Validations rejected for expiry."},
	{ID: tokenward.MetricTokenNotActive, Name: "tokenward_token_not_active_total", Help: "Validations rejected for a future not-before claim."},
	{ID: tokenward.MetricIssuerMismatch, Name: "tokenward_issuer_mismatch_total", Help: "Validations rejected for issuer mismatch."},
	{ID: tokenward.MetricAudienceMismatch, Name: "tokenward_audience_mismatch_total", Help: "Validations rejected for audience mismatch."},
	{ID: tokenward.MetricMissingClaims, Name: "tokenward_missing_claims_total", Help: "Validations rejected for missing required claims."},
	{ID: tokenward.MetricMalformedToken, Name: "tokenward_malformed_token_total", Help: "Validations rejected for malformed tokens or payloads."},
	{ID: tokenward.MetricRefreshScheduled, Name: "tokenward_refresh_scheduled_total", Help: "Refresh cycles scheduled by the keeper."},
	{ID: tokenward.MetricRefreshSuccess, Name: "tokenward_refresh_success_total", Help: "Successful refresh cycles."},
	{ID: tokenward.MetricRefreshFailure, Name: "tokenward_refresh_failure_total", Help: "Failed refresh cycles."},
	{ID: tokenward.MetricRefreshCoalesced, Name: "tokenward_refresh_coalesced_total", Help: "Refresh calls served by an in-flight cycle."},
	{ID: tokenward.MetricManualRefresh, Name: "tokenward_manual_refresh_total", Help: "Manually triggered refresh operations."},
	{ID: tokenward.MetricRecheck, Name: "tokenward_recheck_total", Help: "Periodic revalidation checks."},
	{ID: tokenward.MetricCleanup, Name: "tokenward_cleanup_total", Help: "Lifecycle cleanup operations."},
	{ID: tokenward.MetricPairPersisted, Name: "tokenward_pair_persisted_total", Help: "Token pairs written to the configured store."},
}

// HistogramDefs is an exported constant or variable used by the token lifecycle keeper.
var HistogramDefs = []HistogramDef{
	{ID: tokenward.MetricValidateLatency, Name: "tokenward_validate_latency_seconds", Help: "Validate latency histogram."},
}

// StateGaugeName is the one-hot lifecycle state gauge shared by exporters.
const StateGaugeName = "tokenward_keeper_state"

// StateGaugeHelp is an exported constant or variable used by the token lifecycle keeper.
const StateGaugeHelp = "Current keeper lifecycle state, one series per state, 1 for the active one."

// AuditDroppedName is an exported constant or variable used by the token lifecycle keeper.
const AuditDroppedName = "tokenward_audit_dropped_total"

// AuditDroppedHelp is an exported constant or variable used by the token lifecycle keeper.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// StateValues enumerates every lifecycle state a keeper can report, in
// the order exporters emit the gauge series.
var StateValues = []tokenward.State{
	tokenward.StateIdle,
	tokenward.StateValidatedNoRefresh,
	tokenward.StateRefreshScheduled,
	tokenward.StateRefreshing,
}

// HistogramBounds is an exported constant or variable used by the token lifecycle keeper.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the token lifecycle keeper.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
