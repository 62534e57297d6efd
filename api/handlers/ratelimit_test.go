package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/malbeclabs/feevault/api/handlers"
)

func TestFeeVault_API_RateLimiter_Allow(t *testing.T) {
	t.Parallel()

	// 5 requests per second with a burst of 5
	limiter := handlers.NewRateLimiter(rate.Limit(5), 5)
	defer limiter.Stop()

	ip := "192.168.1.1"
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ip), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ip), "request 6 should be denied")

	// Different IP should have its own limit
	assert.True(t, limiter.Allow("192.168.1.2"), "different IP should be allowed")
}

func TestFeeVault_API_RateLimiter_Refill(t *testing.T) {
	t.Parallel()

	limiter := handlers.NewRateLimiter(rate.Limit(10), 2)
	defer limiter.Stop()

	ip := "192.168.1.1"
	assert.True(t, limiter.Allow(ip))
	assert.True(t, limiter.Allow(ip))
	assert.False(t, limiter.Allow(ip))

	// 100ms = 1 token at 10/sec
	time.Sleep(150 * time.Millisecond)
	assert.True(t, limiter.Allow(ip), "should be allowed after refill")
}

func TestFeeVault_API_RateLimitMiddleware_JSONResponse(t *testing.T) {
	t.Parallel()

	limiter := handlers.NewRateLimiter(rate.Limit(1), 1)
	defer limiter.Stop()

	handler := handlers.RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.50:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var errResp handlers.RateLimitError
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "rate_limit_exceeded", errResp.Error)
	assert.NotEmpty(t, errResp.Message)
	assert.Greater(t, errResp.RetryAfter, 0)
}

func TestFeeVault_API_GetIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	assert.Equal(t, "10.0.0.1", handlers.GetIPFromRequest(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", handlers.GetIPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.3")
	assert.Equal(t, "203.0.113.9", handlers.GetIPFromRequest(req))
}
