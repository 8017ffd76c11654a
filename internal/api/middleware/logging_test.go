package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScrubQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"name=Napalm+Death", "name=Napalm+Death"},
		{"name=x&token=abc", "name=x&token=REDACTED"},
		{"API_KEY=1&flag", "API_KEY=REDACTED&flag"},
	}
	for _, tt := range tests {
		if got := scrubQuery(tt.in); got != tt.want {
			t.Errorf("scrubQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogging_RecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var seenID string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artists/profile?name=x&password=hunter2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seenID == "" || w.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("request id = %q, header = %q", seenID, w.Header().Get(RequestIDHeader))
	}
	out := buf.String()
	for _, want := range []string{"status=404", "bytes=4", "password=REDACTED"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("password leaked into log")
	}
}

func TestLogging_KeepsIncomingRequestID(t *testing.T) {
	h := Logging(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestStatusWriter_Flushes(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	var f http.Flusher = sw
	f.Flush()
	if !rec.Flushed {
		t.Error("Flush was not forwarded")
	}
}
