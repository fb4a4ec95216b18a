package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewAdminRateLimiter()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Burst of 5 should be allowed
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/spotify/key", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewAdminRateLimiter()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the burst
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/spotify/key", nil)
		req.RemoteAddr = "203.0.113.2:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// Next request should be rate limited
	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/spotify/key", nil)
	req.RemoteAddr = "203.0.113.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	rl := NewAdminRateLimiter()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust IP1 burst
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/spotify/key", nil)
		req.RemoteAddr = "203.0.113.3:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// IP2 should still be allowed
	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/spotify/key", nil)
	req.RemoteAddr = "203.0.113.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (different IP should not be rate limited)", w.Code, http.StatusOK)
	}
}

func TestClientIP_DirectConnection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	got := clientIP(req)
	if got != "203.0.113.5" {
		t.Errorf("clientIP = %q, want %q", got, "203.0.113.5")
	}
}

func TestClientIP_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.10, 10.0.0.1")

	got := clientIP(req)
	if got != "203.0.113.10" {
		t.Errorf("clientIP = %q, want %q", got, "203.0.113.10")
	}
}

func TestClientIP_XRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	req.Header.Set("X-Real-Ip", "203.0.113.20")

	got := clientIP(req)
	if got != "203.0.113.20" {
		t.Errorf("clientIP = %q, want %q", got, "203.0.113.20")
	}
}
