package tokenward

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tokenward/tokenward/refresh"
	"github.com/tokenward/tokenward/store"
)

// Keeper defines a public type used by tokenward APIs.
//
// Keeper instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Keeper struct {
	cfg       Config
	validator *Validator
	refresher *refresh.Manager
	store     store.TokenStore
	scheduler Scheduler
	clock     Clock
	logger    *zap.Logger
	metrics   *Metrics
	audit     *auditDispatcher

	mu           sync.Mutex
	state        State
	gen          uint64
	tokens       TokenPair
	onRefreshed  OnRefreshed
	recheckTimer Timer
	refreshTimer Timer
	closed       bool
}

// ValidateAndScheduleRefresh describes the validateandschedulerefresh operation and its observable behavior.
//
// ValidateAndScheduleRefresh may return an error when input validation, dependency calls, or security checks fail.
// ValidateAndScheduleRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) ValidateAndScheduleRefresh(ctx context.Context, pair TokenPair, onRefreshed OnRefreshed) ValidationResult {
	result := k.validator.Validate(pair.AccessToken)

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return result
	}

	// A new entry orphans every continuation scheduled before it.
	k.gen++
	k.tokens = pair
	k.onRefreshed = onRefreshed
	k.enterLocked(result, pair)
	k.mu.Unlock()

	k.emitAudit(ctx, AuditEvent{
		EventType: "token.validate",
		Subject:   subjectOf(result),
		SessionID: sessionOf(result),
		Principal: principalFromContext(ctx),
		State:     k.State().String(),
		ErrorKind: result.ErrorKind.String(),
		Success:   result.IsValid,
	})

	return result
}

// RefreshTokens describes the refreshtokens operation and its observable behavior.
//
// RefreshTokens may return an error when input validation, dependency calls, or security checks fail.
// RefreshTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) RefreshTokens(ctx context.Context, refreshToken string) (refresh.Outcome, error) {
	if refreshToken == "" {
		return refresh.Outcome{}, ErrRefreshTokenRequired
	}

	k.metrics.Inc(MetricManualRefresh)

	outcome := k.refresher.Refresh(ctx, refreshToken)
	if outcome.Coalesced {
		k.metrics.Inc(MetricRefreshCoalesced)
	}

	if outcome.Succeeded {
		k.metrics.Inc(MetricRefreshSuccess)
		k.adopt(ctx, outcome)
	} else {
		k.metrics.Inc(MetricRefreshFailure)
	}

	k.emitAudit(ctx, AuditEvent{
		EventType: "token.refresh",
		Principal: principalFromContext(ctx),
		State:     k.State().String(),
		Success:   outcome.Succeeded,
		Error:     outcome.ErrorMessage,
		Metadata:  map[string]string{"trigger": "manual"},
	})

	return outcome, nil
}

// Cleanup describes the cleanup operation and its observable behavior.
//
// Cleanup may return an error when input validation, dependency calls, or security checks fail.
// Cleanup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) Cleanup() {
	k.mu.Lock()
	k.gen++
	k.stopTimersLocked()
	k.state = StateIdle
	k.tokens = TokenPair{}
	k.onRefreshed = nil
	k.mu.Unlock()

	k.refresher.Reset()
	k.metrics.Inc(MetricCleanup)

	k.emitAudit(context.Background(), AuditEvent{
		EventType: "keeper.cleanup",
		State:     StateIdle.String(),
		Success:   true,
	})
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) Close() error {
	k.Cleanup()

	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	k.audit.Close()
	return nil
}

// Validator describes the validator operation and its observable behavior.
//
// Validator may return an error when input validation, dependency calls, or security checks fail.
// Validator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) Validator() *Validator {
	return k.validator
}

// State describes the state operation and its observable behavior.
//
// State may return an error when input validation, dependency calls, or security checks fail.
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) MetricsSnapshot() MetricsSnapshot {
	return k.metrics.Snapshot()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) AuditDropped() uint64 {
	return k.audit.Dropped()
}

// AuditDroppedEvents describes the auditdroppedevents operation and its observable behavior.
//
// AuditDroppedEvents may return an error when input validation, dependency calls, or security checks fail.
// AuditDroppedEvents does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) AuditDroppedEvents() map[string]uint64 {
	return k.audit.DroppedEvents()
}

// enterLocked establishes the timer layout for the current tokens. The
// caller must hold k.mu with k.gen already advanced to the entering
// generation.
func (k *Keeper) enterLocked(result ValidationResult, pair TokenPair) {
	k.stopTimersLocked()

	gen := k.gen
	k.recheckTimer = k.scheduler.Schedule(k.cfg.Lifecycle.RecheckInterval, func() {
		k.onRecheck(gen)
	})

	if (result.NeedsRefresh || result.IsExpired) && pair.RefreshToken != "" {
		k.state = StateRefreshScheduled
		k.metrics.Inc(MetricRefreshScheduled)
		k.refreshTimer = k.scheduler.Schedule(k.cfg.Lifecycle.RefreshScheduleDelay, func() {
			k.onRefreshDue(gen)
		})
		return
	}

	if result.IsValid {
		k.state = StateValidatedNoRefresh
		return
	}

	k.state = StateIdle
}

func (k *Keeper) stopTimersLocked() {
	if k.recheckTimer != nil {
		k.recheckTimer.Stop()
		k.recheckTimer = nil
	}
	if k.refreshTimer != nil {
		k.refreshTimer.Stop()
		k.refreshTimer = nil
	}
}

// onRecheck re-runs validation against the tokens held at schedule time.
// A stale generation means Cleanup or a newer entry already superseded
// this continuation.
func (k *Keeper) onRecheck(gen uint64) {
	k.mu.Lock()
	if k.closed || gen != k.gen {
		k.mu.Unlock()
		return
	}
	pair := k.tokens
	k.mu.Unlock()

	k.metrics.Inc(MetricRecheck)

	result := k.validator.Validate(pair.AccessToken)

	k.mu.Lock()
	if k.closed || gen != k.gen {
		k.mu.Unlock()
		return
	}
	k.gen++
	k.enterLocked(result, pair)
	k.mu.Unlock()
}

func (k *Keeper) onRefreshDue(gen uint64) {
	k.mu.Lock()
	if k.closed || gen != k.gen {
		k.mu.Unlock()
		return
	}
	k.state = StateRefreshing
	refreshToken := k.tokens.RefreshToken
	k.mu.Unlock()

	ctx := context.Background()
	outcome := k.refresher.Refresh(ctx, refreshToken)
	if outcome.Coalesced {
		k.metrics.Inc(MetricRefreshCoalesced)
	}

	k.mu.Lock()
	if k.closed || gen != k.gen {
		k.mu.Unlock()
		return
	}

	if !outcome.Succeeded {
		k.metrics.Inc(MetricRefreshFailure)
		// Leave the retry decision to the next recheck instead of
		// hammering the endpoint from here.
		k.state = StateValidatedNoRefresh
		recheckGen := k.gen
		k.stopTimersLocked()
		k.recheckTimer = k.scheduler.Schedule(k.cfg.Lifecycle.RecheckInterval, func() {
			k.onRecheck(recheckGen)
		})
		k.mu.Unlock()

		k.logger.Warn("scheduled token refresh failed",
			zap.String("error", outcome.ErrorMessage),
			zap.Uint64("attempts", k.refresher.Attempts()),
		)
		k.emitAudit(ctx, AuditEvent{
			EventType: "token.refresh",
			State:     StateValidatedNoRefresh.String(),
			Success:   false,
			Error:     outcome.ErrorMessage,
			Metadata:  map[string]string{"trigger": "scheduled"},
		})
		return
	}

	k.metrics.Inc(MetricRefreshSuccess)

	pair := TokenPair{
		AccessToken:  outcome.AccessToken,
		RefreshToken: outcome.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	k.tokens = pair
	callback := k.onRefreshed

	result := k.validator.Validate(pair.AccessToken)
	k.gen++
	k.enterLocked(result, pair)
	k.mu.Unlock()

	if callback != nil {
		callback(pair)
	}

	k.persist(ctx, pair)

	k.emitAudit(ctx, AuditEvent{
		EventType: "token.refresh",
		Subject:   subjectOf(result),
		SessionID: sessionOf(result),
		State:     k.State().String(),
		Success:   true,
		Metadata:  map[string]string{"trigger": "scheduled"},
	})
}

// adopt installs a manually refreshed pair into the running lifecycle,
// provided one is active.
func (k *Keeper) adopt(ctx context.Context, outcome refresh.Outcome) {
	k.mu.Lock()
	if k.closed || k.state == StateIdle {
		k.mu.Unlock()
		pair := TokenPair{AccessToken: outcome.AccessToken, RefreshToken: outcome.RefreshToken}
		k.persist(ctx, pair)
		return
	}

	pair := TokenPair{
		AccessToken:  outcome.AccessToken,
		RefreshToken: outcome.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = k.tokens.RefreshToken
	}

	k.tokens = pair
	callback := k.onRefreshed

	result := k.validator.Validate(pair.AccessToken)
	k.gen++
	k.enterLocked(result, pair)
	k.mu.Unlock()

	if callback != nil {
		callback(pair)
	}

	k.persist(ctx, pair)
}

func (k *Keeper) persist(ctx context.Context, pair TokenPair) {
	if !k.cfg.Lifecycle.PersistOnRefresh || k.store == nil {
		return
	}

	key := k.cfg.Store.Key
	if principal := principalFromContext(ctx); principal != "" {
		key = principal
	}

	err := k.store.Save(ctx, key, store.Pair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SavedAt:      k.clock.Now(),
	})
	if err != nil {
		k.logger.Warn("persisting refreshed tokens failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	k.metrics.Inc(MetricPairPersisted)
}

// LoadTokens describes the loadtokens operation and its observable behavior.
//
// LoadTokens may return an error when input validation, dependency calls, or security checks fail.
// LoadTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) LoadTokens(ctx context.Context) (TokenPair, error) {
	if k.store == nil {
		return TokenPair{}, ErrStoreUnavailable
	}

	key := k.cfg.Store.Key
	if principal := principalFromContext(ctx); principal != "" {
		key = principal
	}

	pair, err := k.store.Load(ctx, key)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// ClearTokens describes the cleartokens operation and its observable behavior.
//
// ClearTokens may return an error when input validation, dependency calls, or security checks fail.
// ClearTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k *Keeper) ClearTokens(ctx context.Context) error {
	if k.store == nil {
		return ErrStoreUnavailable
	}

	key := k.cfg.Store.Key
	if principal := principalFromContext(ctx); principal != "" {
		key = principal
	}

	return k.store.Clear(ctx, key)
}

func (k *Keeper) emitAudit(ctx context.Context, event AuditEvent) {
	if k.audit == nil {
		return
	}
	event.Timestamp = k.clock.Now()
	k.audit.Emit(ctx, event)
}

func subjectOf(result ValidationResult) string {
	if result.Payload == nil {
		return ""
	}
	return result.Payload.Subject
}

func sessionOf(result ValidationResult) string {
	if result.Payload == nil {
		return ""
	}
	return result.Payload.SessionID
}
