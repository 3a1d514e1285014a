package tokenward

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tokenward/tokenward/refresh"
	"github.com/tokenward/tokenward/store"
)

// Builder defines a public type used by tokenward APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	redis      redis.UniversalClient
	tokenStore store.TokenStore
	httpClient *http.Client
	auditSink  AuditSink
	logger     *zap.Logger
	scheduler  Scheduler
	clock      Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The defaults validate issuer and audience, so the minimum host-supplied
// configuration is a Config whose Validator.Issuer and Validator.Audience
// are set (via WithConfig). Persistence is off by default; enabling
// Lifecycle.PersistOnRefresh additionally requires WithStore or WithRedis.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(s store.TokenStore) *Builder {
	b.tokenStore = s
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient may return an error when input validation, dependency calls, or security checks fail.
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger may return an error when input validation, dependency calls, or security checks fail.
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithScheduler describes the withscheduler operation and its observable behavior.
//
// WithScheduler may return an error when input validation, dependency calls, or security checks fail.
// WithScheduler does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithScheduler(s Scheduler) *Builder {
	b.scheduler = s
	return b
}

// WithClock describes the withclock operation and its observable behavior.
//
// WithClock may return an error when input validation, dependency calls, or security checks fail.
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Keeper, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokenStore := b.tokenStore
	if tokenStore == nil && b.redis != nil {
		tokenStore = store.NewRedis(b.redis, cfg.Store.RedisPrefix, cfg.Store.TTL)
	}

	if cfg.Lifecycle.PersistOnRefresh && tokenStore == nil {
		return nil, errors.New("PersistOnRefresh requires a token store or redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock()
	}

	scheduler := b.scheduler
	if scheduler == nil {
		scheduler = SystemScheduler()
	}

	metrics := NewMetrics(cfg.Metrics)

	// -------- VALIDATOR --------
	validator := NewValidator(cfg.Validator, clock, metrics)

	// -------- REFRESH MANAGER --------
	refresher := refresh.NewManager(refresh.Config{
		Endpoint:           cfg.Refresh.Endpoint,
		RetryAttempts:      cfg.Refresh.RetryAttempts,
		RetryDelay:         cfg.Refresh.RetryDelay,
		ExponentialBackoff: cfg.Refresh.ExponentialBackoff,
		Timeout:            cfg.Refresh.Timeout,
	}, b.httpClient, logger)

	keeper := &Keeper{
		cfg:       cfg,
		validator: validator,
		refresher: refresher,
		store:     tokenStore,
		scheduler: scheduler,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		state:     StateIdle,
	}

	keeper.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true

	return keeper, nil
}
