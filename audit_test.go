package goSession

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
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

func buildAuditTestEngine(t *testing.T, cfg Config, sink AuditSink) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithUserDirectory(newMockDirectory()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func collectEvents(sink *ChannelSink, n int) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine := buildAuditTestEngine(t, cfg, sink)

	_, _, _ = engine.Login(WithClientIP(context.Background(), "203.0.113.1"), "alice", "wrong-password")
	engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEventsCarryReasonAndIP(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	sink := NewChannelSink(16)
	engine := buildAuditTestEngine(t, cfg, sink)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _, _ = engine.Login(ctx, "alice", "super-secret-password")

	events := collectEvents(sink, 1)
	if len(events) != 1 {
		t.Fatal("expected audit event to be received")
	}
	ev := events[0]
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
	}
	if ev.Reason != "invalid_credentials" {
		t.Fatalf("expected reason invalid_credentials, got %q", ev.Reason)
	}
}

func TestAuditSessionLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(32)
	engine := buildAuditTestEngine(t, cfg, sink)
	ctx := context.Background()

	access, refresh, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_, refresh2, err := engine.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	_, _, _ = engine.Refresh(ctx, refresh)
	_, _ = engine.Authorize(ctx, access, "admin")
	engine.Logout(ctx, access, refresh2)

	events := collectEvents(sink, 5)
	want := []struct {
		typ     string
		success bool
		reason  string
	}{
		{auditEventLoginSuccess, true, ""},
		{auditEventRefreshSuccess, true, ""},
		{auditEventRefreshInvalid, false, "revoked_or_unknown"},
		{auditEventAuthorizeDenied, false, "forbidden_role"},
		{auditEventLogout, true, ""},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, w := range want {
		ev := events[i]
		if ev.EventType != w.typ || ev.Success != w.success || ev.Reason != w.reason {
			t.Fatalf("event %d: got (%s, %v, %q), want (%s, %v, %q)",
				i, ev.EventType, ev.Success, ev.Reason, w.typ, w.success, w.reason)
		}
		if ev.UserID != "u1" {
			t.Fatalf("event %d: expected user u1, got %q", i, ev.UserID)
		}
	}
	if events[4].Metadata["access_revoked"] != "true" || events[4].Metadata["refresh_revoked"] != "true" {
		t.Fatalf("unexpected logout metadata %v", events[4].Metadata)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(32)
	engine := buildAuditTestEngine(t, cfg, sink)
	ctx := context.Background()

	sensitivePassword := "correct-password-123"
	access, refreshToken, err := engine.Login(ctx, "alice", sensitivePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, _, err := engine.Refresh(ctx, refreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	resetToken, err := engine.RequestPasswordReset(ctx, "alice")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	if err := engine.ConfirmPasswordReset(ctx, resetToken, "brand-new-secret"); err != nil {
		t.Fatalf("reset confirm failed: %v", err)
	}

	needles := []string{sensitivePassword, access, refreshToken, resetToken, "brand-new-secret"}
	events := collectEvents(sink, 4)
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Reason, needle) || strings.Contains(ev.TokenID, needle) {
				t.Fatalf("sensitive value leaked into %s", ev.EventType)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata of %s", ev.EventType)
				}
			}
		}
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

func TestAuditDefaultSinkIsLogger(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true

	var logs syncBuffer
	engine, err := New().
		WithConfig(cfg).
		WithUserDirectory(newMockDirectory()).
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	_, _, _ = engine.Login(context.Background(), "alice", "correct-password-123")
	engine.Close()

	if !logs.Contains(auditEventLoginSuccess) {
		t.Fatalf("expected audit event in logger output, got %s", logs.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(v string) bool {
	return strings.Contains(b.String(), v)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
