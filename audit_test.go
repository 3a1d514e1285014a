package tokenward

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: false}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "token.validate"})
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	sink := NewChannelSink(8)
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 16,
		DropIfFull: true,
	}, sink)
	defer dispatcher.Close()

	dispatcher.Emit(context.Background(), AuditEvent{
		EventType: "token.refresh",
		Subject:   "user-42",
		Principal: "alice",
		State:     "refreshing",
		Success:   true,
	})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "token.refresh" {
			t.Fatalf("expected token.refresh event, got %q", ev.EventType)
		}
		if ev.Subject != "user-42" || ev.Principal != "alice" {
			t.Fatalf("unexpected event fields: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

type handshakeSink struct {
	started chan struct{}
	gate    chan struct{}
}

func newHandshakeSink() *handshakeSink {
	return &handshakeSink{
		started: make(chan struct{}, 8),
		gate:    make(chan struct{}),
	}
}

func (s *handshakeSink) Emit(context.Context, AuditEvent) {
	s.started <- struct{}{}
	<-s.gate
}

func TestAuditDropAccountingTracksEventTypeAndState(t *testing.T) {
	sink := newHandshakeSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	if dispatcher.DroppedEvents() != nil {
		t.Fatal("expected nil drop breakdown before any drops")
	}

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "token.validate"})
	// Wait until the sink holds the first event so the buffer state is known.
	<-sink.started

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "token.refresh"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "token.validate", State: "refreshing"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "token.validate", State: "refresh-scheduled"})

	if got := dispatcher.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %d", got)
	}
	byType := dispatcher.DroppedEvents()
	if byType["token.validate"] != 2 {
		t.Fatalf("expected 2 dropped token.validate events, got %v", byType)
	}
	if _, ok := byType["token.refresh"]; ok {
		t.Fatalf("expected no dropped token.refresh events, got %v", byType)
	}
	if got := dispatcher.LastDroppedState(); got != "refresh-scheduled" {
		t.Fatalf("expected last dropped state refresh-scheduled, got %q", got)
	}

	// The returned map is a copy; mutating it must not affect accounting.
	byType["token.validate"] = 99
	if dispatcher.DroppedEvents()["token.validate"] != 2 {
		t.Fatal("expected drop breakdown to be isolated from caller mutation")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "token.validate",
		Subject:   "user-42",
		State:     "validated",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("token.validate") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"subject\":\"user-42\"") {
		t.Fatal("expected JSON log line to contain subject")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

func TestAuditNoRawTokensInEvents(t *testing.T) {
	server := newRefreshServer(t, nil)
	sink := NewChannelSink(32)

	cfg := keeperTestConfig(server.URL)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	keeper, err := New().
		WithConfig(cfg).
		WithAuditSink(sink).
		WithScheduler(&manualScheduler{}).
		WithClock(fixedClock{now: validatorTestNow}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = keeper.Close() })

	access := keeperTestToken(t, validatorTestNow.Add(time.Hour))
	refreshToken := "very-secret-refresh-token"

	keeper.ValidateAndScheduleRefresh(context.Background(), TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
	}, nil)
	if _, err := keeper.RefreshTokens(context.Background(), refreshToken); err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}

	events := make([]AuditEvent, 0, 4)
	timeout := time.After(2 * time.Second)
collectLoop:
	for len(events) < 4 {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}

	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	secretNeedles := []string{access, refreshToken}
	for _, ev := range events {
		for _, needle := range secretNeedles {
			if stringContains(ev.Error, needle) || stringContains(ev.Subject, needle) {
				t.Fatalf("raw token leaked in audit event: %+v", ev)
			}
			for k, v := range ev.Metadata {
				if stringContains(k, needle) || stringContains(v, needle) {
					t.Fatalf("raw token leaked in audit metadata: %+v", ev)
				}
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return stringContains(string(b.buf), v)
}

func stringContains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
