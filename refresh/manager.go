package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultExpiresIn is applied when a successful exchange omits expires_in.
const DefaultExpiresIn = 15 * time.Minute

// maxBodyBytes caps how much of any response body is read. Refresh
// responses are small; anything larger is hostile or broken.
const maxBodyBytes = 64 * 1024

// ErrEmptyRefreshToken is an exported constant or variable used by the token lifecycle keeper.
var ErrEmptyRefreshToken = errors.New("refresh token required")

// Config defines a public type used by tokenward APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Endpoint           string
	RetryAttempts      int
	RetryDelay         time.Duration
	ExponentialBackoff bool
	Timeout            time.Duration
}

// Outcome defines a public type used by tokenward APIs.
//
// Outcome instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Outcome struct {
	Succeeded    bool
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	ErrorMessage string
	Coalesced    bool
}

type call struct {
	done    chan struct{}
	outcome Outcome
}

// Manager defines a public type used by tokenward APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
	client *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	inFlight    *call
	attempts    uint64
	lastAttempt time.Time
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config, client *http.Client, logger *zap.Logger) *Manager {
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) Outcome {
	if refreshToken == "" {
		return Outcome{ErrorMessage: ErrEmptyRefreshToken.Error()}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if c := m.inFlight; c != nil {
		m.mu.Unlock()
		select {
		case <-c.done:
			out := c.outcome
			out.Coalesced = true
			return out
		case <-ctx.Done():
			return Outcome{ErrorMessage: ctx.Err().Error(), Coalesced: true}
		}
	}
	c := &call{done: make(chan struct{})}
	m.inFlight = c
	m.mu.Unlock()

	outcome := m.run(ctx, refreshToken)

	m.mu.Lock()
	m.inFlight = nil
	m.lastAttempt = time.Now()
	if outcome.Succeeded {
		m.attempts = 0
	}
	m.mu.Unlock()

	c.outcome = outcome
	close(c.done)

	return outcome
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.attempts = 0
	m.lastAttempt = time.Time{}
	m.mu.Unlock()
}

// Attempts describes the attempts operation and its observable behavior.
//
// Attempts may return an error when input validation, dependency calls, or security checks fail.
// Attempts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Attempts() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastAttempt describes the lastattempt operation and its observable behavior.
//
// LastAttempt may return an error when input validation, dependency calls, or security checks fail.
// LastAttempt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) LastAttempt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAttempt
}

func (m *Manager) run(ctx context.Context, refreshToken string) Outcome {
	for attempt := 0; ; attempt++ {
		m.noteAttempt()

		outcome, retryable := m.attempt(ctx, refreshToken)
		if outcome.Succeeded {
			return outcome
		}
		if !retryable || attempt == m.config.RetryAttempts {
			m.logger.Warn("token refresh exhausted",
				zap.Int("attempts", attempt+1),
				zap.String("error", outcome.ErrorMessage),
			)
			return outcome
		}

		select {
		case <-time.After(m.retryDelay(attempt)):
		case <-ctx.Done():
			return Outcome{ErrorMessage: ctx.Err().Error()}
		}
	}
}

func (m *Manager) retryDelay(attempt int) time.Duration {
	if !m.config.ExponentialBackoff {
		return m.config.RetryDelay
	}
	return m.config.RetryDelay << uint(attempt)
}

func (m *Manager) noteAttempt() {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
}

type wireRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type wireResponse struct {
	SessionToken string `json:"session_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

// attempt issues one exchange. The bool reports whether the failure is
// transient: network errors and non-auth HTTP failures are retried,
// 401/403 and broken response contracts are not.
func (m *Manager) attempt(ctx context.Context, refreshToken string) (Outcome, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	body, err := json.Marshal(wireRequest{RefreshToken: refreshToken})
	if err != nil {
		return Outcome{ErrorMessage: err.Error()}, false
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, m.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{ErrorMessage: err.Error()}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := m.client.Do(req)
	if err != nil {
		return Outcome{ErrorMessage: err.Error()}, true
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Authentication failures are not transient.
		return Outcome{ErrorMessage: responseMessage(resp)}, false
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{ErrorMessage: responseMessage(resp)}, true
	}

	var wire wireResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&wire); err != nil {
		return Outcome{ErrorMessage: "malformed refresh response: " + err.Error()}, false
	}

	access := wire.SessionToken
	if access == "" {
		access = wire.AccessToken
	}
	if access == "" {
		return Outcome{ErrorMessage: "refresh response missing access token"}, false
	}

	expiresIn := DefaultExpiresIn
	if wire.ExpiresIn > 0 {
		expiresIn = time.Duration(wire.ExpiresIn) * time.Second
	}

	return Outcome{
		Succeeded:    true,
		AccessToken:  access,
		RefreshToken: wire.RefreshToken,
		ExpiresIn:    expiresIn,
	}, false
}

func responseMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil && len(data) > 0 {
		var wire wireResponse
		if jsonErr := json.Unmarshal(data, &wire); jsonErr == nil {
			if wire.Message != "" {
				return wire.Message
			}
			if wire.Error != "" {
				return wire.Error
			}
		}
	}
	return fmt.Sprintf("refresh endpoint returned status %d", resp.StatusCode)
}
