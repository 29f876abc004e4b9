package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charles-997/budge/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	cfg.Format = "json"
	m := NewMiddleware(log.New(cfg), func(*http.Request) string { return "10.0.0.1" })

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/budgets", nil))

		if !strings.HasPrefix(seen, "req_") {
			t.Errorf("request id = %q, want req_ prefix", seen)
		}
		if rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
		}
	})

	t.Run("propagated from client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/budgets", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "abc-123" {
			t.Errorf("request id = %q, want abc-123", seen)
		}
	})

	if got := m.GetMetrics().TotalRequests; got != 2 {
		t.Errorf("TotalRequests = %d, want 2", got)
	}
	if !strings.Contains(buf.String(), `"status_code":418`) {
		t.Errorf("completion log missing status: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Errorf("completion log missing request id: %s", buf.String())
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}
