package tokenward

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by tokenward APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Validator ValidatorConfig
	Refresh   RefreshConfig
	Lifecycle LifecycleConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
VALIDATOR CONFIG
====================================
*/

// ValidatorConfig defines a public type used by tokenward APIs.
//
// ValidatorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidatorConfig struct {
	ExpectedIssuer     string
	ExpectedAudience   string
	CheckExpiration    bool
	CheckNotBefore     bool
	ValidateIssuer     bool
	ValidateAudience   bool
	ClockSkewTolerance time.Duration
	RequiredClaims     []string
	RefreshThreshold   time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by tokenward APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	Endpoint           string
	RetryAttempts      int
	RetryDelay         time.Duration
	ExponentialBackoff bool
	Timeout            time.Duration
}

/*
====================================
LIFECYCLE CONFIG
====================================
*/

// LifecycleConfig defines a public type used by tokenward APIs.
//
// LifecycleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LifecycleConfig struct {
	RecheckInterval      time.Duration
	RefreshScheduleDelay time.Duration
	PersistOnRefresh     bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by tokenward APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
	Key         string
	TTL         time.Duration
}

// AuditConfig defines a public type used by tokenward APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by tokenward APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Validator: ValidatorConfig{
			CheckExpiration:    true,
			CheckNotBefore:     true,
			ValidateIssuer:     true,
			ValidateAudience:   true,
			ClockSkewTolerance: 30 * time.Second,
			RequiredClaims:     []string{"sub", "exp", "iat", "email"},
			RefreshThreshold:   60 * time.Second,
		},
		Refresh: RefreshConfig{
			Endpoint:           "/api/v2/user/refresh",
			RetryAttempts:      3,
			RetryDelay:         time.Second,
			ExponentialBackoff: true,
			Timeout:            10 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			RecheckInterval:      time.Minute,
			RefreshScheduleDelay: 10 * time.Millisecond,
			// Off by default so hosts without a store can build; opt in
			// together with WithStore or WithRedis.
			PersistOnRefresh: false,
		},
		Store: StoreConfig{
			RedisPrefix: "tw",
			Key:         "primary",
			TTL:         7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Validator.RequiredClaims = cloneStrings(cfg.Validator.RequiredClaims)
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Validator
	if c.Validator.ClockSkewTolerance < 0 || c.Validator.ClockSkewTolerance > 2*time.Minute {
		return errors.New("Validator ClockSkewTolerance must be within [0, 2m]")
	}
	if c.Validator.RefreshThreshold <= 0 {
		return errors.New("Validator RefreshThreshold must be > 0")
	}
	if c.Validator.ValidateIssuer && c.Validator.ExpectedIssuer == "" {
		return errors.New("Validator ExpectedIssuer required when ValidateIssuer is true")
	}
	if c.Validator.ValidateAudience && c.Validator.ExpectedAudience == "" {
		return errors.New("Validator ExpectedAudience required when ValidateAudience is true")
	}
	for _, claim := range c.Validator.RequiredClaims {
		if strings.TrimSpace(claim) == "" {
			return errors.New("Validator RequiredClaims contains an empty claim name")
		}
	}

	// Refresh
	if c.Refresh.Endpoint == "" {
		return errors.New("Refresh Endpoint must be set")
	}
	if c.Refresh.RetryAttempts < 0 || c.Refresh.RetryAttempts > 10 {
		return errors.New("Refresh RetryAttempts must be within [0, 10]")
	}
	if c.Refresh.RetryDelay <= 0 {
		return errors.New("Refresh RetryDelay must be > 0")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	// Lifecycle
	if c.Lifecycle.RecheckInterval <= 0 {
		return errors.New("Lifecycle RecheckInterval must be > 0")
	}
	if c.Lifecycle.RefreshScheduleDelay < 0 {
		return errors.New("Lifecycle RefreshScheduleDelay must be >= 0")
	}

	// Store
	if c.Lifecycle.PersistOnRefresh && c.Store.Key == "" {
		return errors.New("Store Key must be set when PersistOnRefresh is true")
	}
	if c.Store.TTL < 0 {
		return errors.New("Store TTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
