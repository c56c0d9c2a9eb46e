package logging

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func collectFields(entry observer.LoggedEntry) map[string]interface{} {
	fields := map[string]interface{}{}
	for _, field := range entry.Context {
		fields[field.Key] = field.Interface
		if field.Type == zapcore.StringType {
			fields[field.Key] = field.String
		}
		if field.Type == zapcore.Int64Type || field.Type == zapcore.Uint64Type {
			fields[field.Key] = field.Integer
		}
	}
	return fields
}

func resetState() {
	current.Store(&scope{})
	turns.Store(0)
}

func TestStartSessionAddsLogFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	defer Use(nil)
	resetState()

	SetTraceID("trace-123")
	StartSession("session-abc")
	Infof("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}

	fields := collectFields(logs[0])
	if fields["trace_id"] != "trace-123" {
		t.Fatalf("expected trace_id to be trace-123, got %v", fields["trace_id"])
	}
	if fields["turn_id"] != int64(1) {
		t.Fatalf("expected turn_id to be 1, got %v", fields["turn_id"])
	}
	if fields["log_id"] != "trace-123-1" {
		t.Fatalf("expected log_id to be trace-123-1, got %v", fields["log_id"])
	}
	if fields["session_id"] != "session-abc" {
		t.Fatalf("expected session_id to be session-abc, got %v", fields["session_id"])
	}
}

func TestEndSessionDropsSessionField(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	defer Use(nil)
	resetState()

	StartSession("s1")
	EndSession()
	Warnf("after")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	fields := collectFields(logs[0])
	if _, ok := fields["session_id"]; ok {
		t.Fatalf("expected no session_id after EndSession, got %v", fields["session_id"])
	}
	if fields["trace_id"] != "trace-unknown" {
		t.Fatalf("expected default trace id, got %v", fields["trace_id"])
	}
}

func TestNewTraceIDIsUUID(t *testing.T) {
	id := NewTraceID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid trace id, got %q: %v", id, err)
	}
}

func TestInitRejectsBadFormat(t *testing.T) {
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	Use(nil)
}

func TestInitAcceptsKnownFormats(t *testing.T) {
	for _, cfg := range []Config{{}, {Level: "DEBUG", Format: "json"}, {Level: "warn", Format: "Console"}} {
		if err := Init(cfg); err != nil {
			t.Fatalf("Init(%+v): %v", cfg, err)
		}
	}
	Use(nil)
}

func TestTurnPersistsAfterEndSession(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	defer Use(nil)
	resetState()

	if got := StartSession("a"); got != 1 {
		t.Fatalf("first turn = %d, want 1", got)
	}
	EndSession()
	if got := StartSession("b"); got != 2 {
		t.Fatalf("second turn = %d, want 2", got)
	}
	EndSession()
	Infof("idle")

	fields := collectFields(recorded.All()[0])
	if fields["turn_id"] != int64(2) {
		t.Fatalf("expected turn_id 2 after session end, got %v", fields["turn_id"])
	}
}
