package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestLogger_ComponentAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentLedger)

	ctx := WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "hello", FieldBudgetID, "b1")
	logger.DebugContext(context.Background(), "quiet")

	recs := decodeLines(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0][FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %s", recs[0][FieldComponent], ComponentLedger)
	}
	if recs[0][FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v, want req-1", recs[0][FieldRequestID])
	}
	if recs[0][FieldBudgetID] != "b1" {
		t.Errorf("budget_id = %v, want b1", recs[0][FieldBudgetID])
	}
	if _, ok := recs[1][FieldRequestID]; ok {
		t.Error("request_id should be absent without one in the context")
	}
	if logger.Component() != ComponentLedger {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})

	logger.InfoContext(context.Background(), "dropped")
	logger.WarnContext(context.Background(), "kept")

	recs := decodeLines(t, &buf)
	if len(recs) != 1 || recs[0]["msg"] != "kept" {
		t.Fatalf("unexpected records: %v", recs)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOperation("create account").
		WithBudget("b1").
		WithBudget("").
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldOperation] != "create account" {
		t.Errorf("operation = %v", f[FieldOperation])
	}
	if f[FieldBudgetID] != "b1" {
		t.Errorf("budget_id = %v", f[FieldBudgetID])
	}
	if f[FieldError] != "boom" {
		t.Errorf("error = %v", f[FieldError])
	}
	if got := len(f.ToSlice()); got != 6 {
		t.Errorf("ToSlice length = %d, want 6", got)
	}
}

func TestFromContext(t *testing.T) {
	logger := New(DefaultConfig())
	req := httptest.NewRequest("GET", "/", nil)

	if got := FromContext(req.Context()); got.Component() != "unknown" {
		t.Errorf("fallback component = %s, want unknown", got.Component())
	}

	var seen *Logger
	handler := Middleware(logger)(httpHandlerFunc(func(ctx context.Context) {
		seen = FromContext(ctx)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != logger {
		t.Error("middleware did not store the logger in the request context")
	}
}

func TestLogHTTPEnd_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
		req := httptest.NewRequest("GET", "/budgets", nil)
		logger.LogHTTPEnd(context.Background(), req, tt.status, 3, "127.0.0.1")

		recs := decodeLines(t, &buf)
		if len(recs) != 1 {
			t.Fatalf("status %d: expected 1 record, got %d", tt.status, len(recs))
		}
		if recs[0]["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, recs[0]["level"], tt.level)
		}
	}
}

type httpHandlerFunc func(ctx context.Context)

func (f httpHandlerFunc) ServeHTTP(_ http.ResponseWriter, r *http.Request) {
	f(r.Context())
}
