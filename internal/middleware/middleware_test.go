package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"remote with port", "10.0.0.7:51234", "", false, "10.0.0.7"},
		{"ipv6 remote", "[::1]:8080", "", false, "::1"},
		{"remote without port", "10.0.0.7", "", false, "10.0.0.7"},
		{"forwarded ignored", "10.0.0.7:1", "203.0.113.9", false, "10.0.0.7"},
		{"forwarded trusted", "10.0.0.7:1", "203.0.113.9, 10.0.0.1", true, "203.0.113.9"},
		{"blank forwarded", "10.0.0.7:1", " ", true, "10.0.0.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.trustProxy))
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	var gotClient, gotID string
	h := Logger(log, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClient = Client(r)
		gotID = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	r := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.4")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "198.51.100.4", gotClient)
	assert.NotEmpty(t, gotID)
	assert.Equal(t, gotID, w.Header().Get(RequestIDHeader))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "path=/v1/sessions")
	assert.Contains(t, out, "bytes=15")
	assert.Contains(t, out, "request_id="+gotID)
}

func TestLogger_KeepsRequestID(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := Logger(log, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClient_WithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", Client(r))
}
