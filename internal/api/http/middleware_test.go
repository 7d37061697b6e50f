package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------- CORS middleware tests ----------

func TestCorsMiddleware_AllowAll_WhenNoOriginsConfigured(t *testing.T) {
	handler := corsMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/video/abc", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Errorf("expected origin reflected, got %q", got)
	}
}

func TestCorsMiddleware_AllowWhitelisted(t *testing.T) {
	allowed := []string{"https://ytlinks.vercel.app", "http://localhost:3000"}
	handler := corsMiddleware(allowed, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected whitelisted origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got == "" {
		t.Error("expected exposed range headers")
	}
}

func TestCorsMiddleware_RejectNonWhitelisted(t *testing.T) {
	handler := corsMiddleware([]string{"https://ytlinks.vercel.app"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got %q", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/health", nil)
	preflight.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 preflight, got %d", rec.Code)
	}
}

func TestCorsMiddleware_PreflightReturns204(t *testing.T) {
	called := false
	handler := corsMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/stream/abc", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("next handler should not run for preflight")
	}
}

// ---------- rate limit tests ----------

func TestRateLimitMiddleware_Returns429AfterBurst(t *testing.T) {
	handler := rateLimitMiddleware(0.001, 2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/abc", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
		t.Fatalf("expected error body, got %v", err)
	}
}

func TestRateLimitMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	handler := rateLimitMiddleware(0.001, 1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/health", "/metrics"} {
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s request %d: expected 200, got %d", path, i, rec.Code)
			}
		}
	}
}

// ---------- recovery tests ----------

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	handler := recoveryMiddleware(slog.Default(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/abc", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := recoveryMiddleware(slog.Default(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", got)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stream/abc", nil))
	t.Fatal("expected panic")
}

// ---------- response writer and helpers ----------

func TestLoggingMiddleware_SetsStatusAndSize(t *testing.T) {
	var captured *responseWriter
	handler := loggingMiddleware(slog.Default(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("hello"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stream/abc", nil))
	if captured.status != http.StatusPartialContent || captured.size != 5 {
		t.Fatalf("status=%d size=%d", captured.status, captured.size)
	}
}

func TestResponseWriter_FlushPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	rw.Flush()
	if !rec.Flushed {
		t.Fatal("expected underlying recorder to be flushed")
	}
	if rw.Unwrap() != rec {
		t.Fatal("Unwrap should return the wrapped writer")
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Fatal("expected error from recorder without hijack support")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded first hop", header: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, remote: "9.9.9.9:1", want: "1.2.3.4"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "4.4.4.4"}, remote: "9.9.9.9:1", want: "4.4.4.4"},
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote without port", remote: "10.0.0.2", want: "10.0.0.2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 10); got != "abcdef" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestPickRequestLogLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/video/x", 500, slog.LevelError},
		{"/api/video/x", 404, slog.LevelWarn},
		{"/api/stream/x", 206, slog.LevelDebug},
		{"/health", 200, slog.LevelDebug},
		{"/api/video/x", 200, slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := pickRequestLogLevel(tc.path, tc.status); got != tc.want {
			t.Errorf("pickRequestLogLevel(%q, %d) = %v, want %v", tc.path, tc.status, got, tc.want)
		}
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/api/video/dQw4w9WgXcQ":   "/api/video/:id",
		"/api/stream/dQw4w9WgXcQ":  "/api/stream/:id",
		"/api/formats/dQw4w9WgXcQ": "/api/formats/:id",
		"/api/youtube_search":      "/api/youtube_search",
		"/health":                  "/health",
		"/ws":                      "/ws",
		"/favicon.ico":             "/other",
	}
	for path, want := range tests {
		if got := normalizeRoute(path); got != want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}
