package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBlocksPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/pools", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do("10.0.0.1:1000"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := do("10.0.0.1:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("second request from same host: expected 429, got %d", code)
	}
	if code := do("10.0.0.2:1000"); code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(10 * time.Minute)
	rl.getLimiter("b")

	rl.CleanupLimiters(5 * time.Minute)

	if _, ok := rl.limiters["a"]; ok {
		t.Fatalf("expected idle client to be dropped")
	}
	if _, ok := rl.limiters["b"]; !ok {
		t.Fatalf("expected recent client to be kept")
	}
}
