package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginRateLimiterAllowWindow(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.allow("10.0.0.1", base.Add(time.Duration(i)*time.Second))
		if !allowed {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := limiter.allow("10.0.0.1", base.Add(3*time.Second))
	if allowed {
		t.Fatal("fourth hit inside the window should be denied")
	}
	if retryAfter < time.Second || retryAfter > time.Minute {
		t.Fatalf("retryAfter = %v, want within (1s, 1m]", retryAfter)
	}

	// A different client is unaffected.
	if allowed, _ := limiter.allow("10.0.0.2", base.Add(3*time.Second)); !allowed {
		t.Fatal("separate IP should not share the limit")
	}

	// Old hits fall out of the window.
	if allowed, _ := limiter.allow("10.0.0.1", base.Add(2*time.Minute)); !allowed {
		t.Fatal("hit after the window should be allowed again")
	}
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("203.0.113.7"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := send("203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	if rec := send("203.0.113.8"); rec.Code != http.StatusOK {
		t.Fatalf("other client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:4321"

	if got := rateLimitClientIP(req); got != "192.0.2.1:4321" {
		t.Fatalf("clientIP = %q, want remote addr", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	if got := rateLimitClientIP(req); got != "198.51.100.9" {
		t.Fatalf("clientIP = %q, want first forwarded hop", got)
	}
}
