package core

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cropsight/internal/config"
	"cropsight/internal/types"
)

func testConfig() *config.Config {
	cfg := &config.Config{Environment: "local"}
	cfg.Server.Port = "8080"
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.Issuer = "cropsight"
	cfg.Auth.TokenTTL = 24 * time.Hour
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request ID injected into context")
	}
	if got := w.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
	if len(seen) != 32 {
		t.Errorf("generated ID length = %d, want 32 hex chars", len(seen))
	}
}

func TestRequestIDMiddleware_PropagatesIncoming(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "upstream-id-123")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if seen != "upstream-id-123" {
		t.Errorf("request ID = %q, want the incoming header value", seen)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRecovererCatchesPanics(t *testing.T) {
	s := newTestServer(t)
	handler := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/insights", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("body = %s, want structured error envelope", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("panic value leaked to the client")
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.cropsight.io"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight must not reach the handler")
		}))

	r := httptest.NewRequest(http.MethodOptions, "/v1/fields", nil)
	r.Header.Set("Origin", "https://app.cropsight.io")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.cropsight.io" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.cropsight.io"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want unset for unknown origin", got)
	}
}

func TestRequestLoggerCapturesStatus(t *testing.T) {
	// The logger must not panic and must pass the response through unchanged.
	handler := RequestLogger(slog.New(slog.DiscardHandler), defaultRedactedHeaders)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418 passed through", w.Code)
	}
}
