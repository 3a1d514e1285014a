package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	return NewManager(cfg, nil, nil)
}

func TestRefreshSuccess(t *testing.T) {
	var gotAuth, gotRequestID, gotBodyToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")

		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		gotBodyToken = req.RefreshToken

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_token": "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    120,
		})
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL, RetryAttempts: 0, RetryDelay: 10 * time.Millisecond})

	out := m.Refresh(context.Background(), "old-refresh")
	if !out.Succeeded {
		t.Fatalf("refresh failed: %s", out.ErrorMessage)
	}
	if out.AccessToken != "new-access" || out.RefreshToken != "new-refresh" {
		t.Fatalf("unexpected token pair: %+v", out)
	}
	if out.ExpiresIn != 2*time.Minute {
		t.Fatalf("unexpected expires-in: %v", out.ExpiresIn)
	}
	if gotAuth != "Bearer old-refresh" {
		t.Fatalf("unexpected Authorization header: %q", gotAuth)
	}
	if gotBodyToken != "old-refresh" {
		t.Fatalf("unexpected body token: %q", gotBodyToken)
	}
	if gotRequestID == "" {
		t.Fatal("missing X-Request-ID header")
	}
	if m.Attempts() != 0 {
		t.Fatalf("attempt counter not reset on success: %d", m.Attempts())
	}
	if m.LastAttempt().IsZero() {
		t.Fatal("last attempt timestamp not recorded")
	}
}

func TestRefreshAcceptsAccessTokenNaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "alt-access"})
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL})

	out := m.Refresh(context.Background(), "r1")
	if !out.Succeeded {
		t.Fatalf("refresh failed: %s", out.ErrorMessage)
	}
	if out.AccessToken != "alt-access" {
		t.Fatalf("unexpected access token: %q", out.AccessToken)
	}
	if out.RefreshToken != "" {
		t.Fatalf("unexpected refresh token: %q", out.RefreshToken)
	}
	if out.ExpiresIn != DefaultExpiresIn {
		t.Fatalf("expected default expires-in, got %v", out.ExpiresIn)
	}
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	var requests atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
		}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"session_token": "coalesced-access"})
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL, Timeout: 5 * time.Second})

	const n = 5
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[0] = m.Refresh(context.Background(), "r1")
	}()

	<-started

	wg.Add(n - 1)
	for i := 1; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			outcomes[i] = m.Refresh(context.Background(), "r1")
		}(i)
	}

	// Give the followers time to find the in-flight call before the
	// leader's request completes.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := requests.Load(); got != 1 {
		t.Fatalf("expected exactly 1 network request, got %d", got)
	}

	coalesced := 0
	for i, out := range outcomes {
		if !out.Succeeded {
			t.Fatalf("caller %d failed: %s", i, out.ErrorMessage)
		}
		if out.AccessToken != "coalesced-access" {
			t.Fatalf("caller %d got mismatched outcome: %+v", i, out)
		}
		if out.Coalesced {
			coalesced++
		}
	}
	if coalesced != n-1 {
		t.Fatalf("expected %d coalesced callers, got %d", n-1, coalesced)
	}
}

func TestRefreshExponentialBackoff(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newManager(t, Config{
		Endpoint:           srv.URL,
		RetryAttempts:      2,
		RetryDelay:         100 * time.Millisecond,
		ExponentialBackoff: true,
	})

	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected failure")
	}

	mu.Lock()
	defer mu.Unlock()

	if len(arrivals) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(arrivals))
	}

	first := arrivals[1].Sub(arrivals[0])
	second := arrivals[2].Sub(arrivals[1])
	if first < 90*time.Millisecond || first > 180*time.Millisecond {
		t.Fatalf("first backoff gap out of range: %v", first)
	}
	if second < 190*time.Millisecond || second > 320*time.Millisecond {
		t.Fatalf("second backoff gap out of range: %v", second)
	}
}

func TestRefreshFlatDelayWithoutBackoff(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "backend down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := newManager(t, Config{
		Endpoint:      srv.URL,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
	})

	if out := m.Refresh(context.Background(), "r1"); out.Succeeded {
		t.Fatal("expected failure")
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRefreshNoRetryOnAuthFailure(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "refresh token revoked"})
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL, RetryAttempts: 3, RetryDelay: 10 * time.Millisecond})

	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("auth failure must not retry, got %d attempts", got)
	}
	if out.ErrorMessage != "refresh token revoked" {
		t.Fatalf("expected response body message, got %q", out.ErrorMessage)
	}
}

func TestRefreshMalformedSuccessBody(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL, RetryAttempts: 3, RetryDelay: 10 * time.Millisecond})

	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("broken response contract must not retry, got %d attempts", got)
	}
	if !strings.Contains(out.ErrorMessage, "malformed refresh response") {
		t.Fatalf("unexpected error message: %q", out.ErrorMessage)
	}
}

func TestRefreshMissingAccessTokenInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"refresh_token": "only-refresh"})
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL})

	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.ErrorMessage, "missing access token") {
		t.Fatalf("unexpected error message: %q", out.ErrorMessage)
	}
}

func TestRefreshNetworkErrorRetriesAndCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close() // connection refused from here on

	m := newManager(t, Config{Endpoint: endpoint, RetryAttempts: 1, RetryDelay: 10 * time.Millisecond})

	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if out.ErrorMessage == "" {
		t.Fatal("expected captured error message")
	}
	if m.Attempts() != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", m.Attempts())
	}

	m.Reset()
	if m.Attempts() != 0 || !m.LastAttempt().IsZero() {
		t.Fatal("reset did not clear attempt state")
	}
}

func TestRefreshTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	m := newManager(t, Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	out := m.Refresh(context.Background(), "r1")
	if out.Succeeded {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestRefreshEmptyToken(t *testing.T) {
	m := newManager(t, Config{Endpoint: "http://127.0.0.1:0"})

	out := m.Refresh(context.Background(), "")
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if out.ErrorMessage != ErrEmptyRefreshToken.Error() {
		t.Fatalf("unexpected error message: %q", out.ErrorMessage)
	}
}
