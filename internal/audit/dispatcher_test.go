package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("expected zero counters on nil dispatcher")
	}
}

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for _, typ := range []string{"a", "b", "c"} {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()

	var got []string
	for len(sink.Events()) > 0 {
		got = append(got, (<-sink.Events()).EventType)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("expected ordered delivery, got %v", got)
	}
	if d.Delivered() != 3 {
		t.Fatalf("expected 3 delivered, got %d", d.Delivered())
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	if len(sink.Events()) != 0 {
		t.Fatal("expected emit after close to be ignored")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and tiny buffer")
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		d.Emit(ctx, Event{EventType: "x"})
	}
	if d.Dropped() != 0 {
		t.Fatal("blocking mode must not count drops")
	}
	close(sink.gate)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != "login_success" || decoded.UserID != "u1" || !decoded.Success {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewSlogSink(logger)
	s.Emit(context.Background(), Event{EventType: "authorize_denied", Reason: "revoked_or_unknown", Metadata: map[string]string{"op": "authorize"}})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["level"] != "WARN" || line["reason"] != "revoked_or_unknown" || line["meta.op"] != "authorize" {
		t.Fatalf("unexpected log line %v", line)
	}
}
