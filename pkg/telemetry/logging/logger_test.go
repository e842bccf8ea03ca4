package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"invalid level", Config{Level: "loud"}, true},
		{"invalid format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return record
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn record missing: %s", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithThreadID(ctx, "thread-9")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With("component", "relay").InfoContext(ctx, "session finished")

	record := decode(t, &buf)
	want := map[string]string{
		"request_id": "req-1",
		"thread_id":  "thread-9",
		"trace_id":   "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":    "00f067aa0ba902b7",
		"component":  "relay",
	}
	for k, v := range want {
		if record[k] != v {
			t.Errorf("record[%q] = %v, want %q", k, record[k], v)
		}
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetThreadID(ctx) != "" {
		t.Error("empty context should have no fields")
	}
	if fields := contextFields(ctx); len(fields) != 0 {
		t.Errorf("contextFields() = %v, want none", fields)
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, RedactSecrets: true})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("upstream configured",
		"api_key", "local-not-needed",
		"header", "Bearer abc.def-ghi",
		"note", "key sk-abcdefgh12345",
		"model", "llama3:8b",
	)

	record := decode(t, &buf)
	if record["api_key"] != "loca***" {
		t.Errorf("api_key = %v", record["api_key"])
	}
	if record["header"] != "Bearer ***" {
		t.Errorf("header = %v", record["header"])
	}
	if record["note"] != "key sk-***" {
		t.Errorf("note = %v", record["note"])
	}
	if record["model"] != "llama3:8b" {
		t.Errorf("model = %v", record["model"])
	}
}

func TestRedactValue(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "***",
		"local-not-needed": "loca***",
	}
	for in, want := range tests {
		if got := RedactValue(in); got != want {
			t.Errorf("RedactValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
