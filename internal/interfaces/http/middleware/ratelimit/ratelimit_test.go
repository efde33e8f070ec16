package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name  string
		rate  rate.Limit
		burst int
		ttl   time.Duration
	}{
		{name: "Standard configuration", rate: 100, burst: 200, ttl: 3 * time.Minute},
		{name: "Strict configuration", rate: 1, burst: 1, ttl: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst, tt.ttl)
			defer rl.Stop()

			assert.Equal(t, tt.rate, rl.rate)
			assert.Equal(t, tt.burst, rl.burst)
			assert.Equal(t, tt.ttl, rl.ttl)
			assert.NotNil(t, rl.visitors)
		})
	}
}

func TestGetVisitor(t *testing.T) {
	rl := NewRateLimiter(100, 200, 3*time.Minute)
	defer rl.Stop()

	limiter1 := rl.getVisitor("192.168.1.1")
	assert.NotNil(t, limiter1)
	assert.Same(t, limiter1, rl.getVisitor("192.168.1.1"))
	assert.NotSame(t, limiter1, rl.getVisitor("192.168.1.2"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recovery/start", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrTooManyRequests.GetCode())

	// A different caller has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/api/v1/recovery/start", nil)
	other.RemoteAddr = "192.168.1.2:12345"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterMiddleware_ContextAddress(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Two connections from the same proxied caller share a bucket.
	for i, remote := range []string{"10.0.0.1:1000", "10.0.0.2:2000"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		req = req.WithContext(domain.WithClientIP(req.Context(), "203.0.113.50"))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
}

func TestRateLimiterMiddlewareMissingAddress(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEvict(t *testing.T) {
	rl := &RateLimiter{
		visitors: make(map[string]*clientLimiter),
		rate:     1,
		burst:    1,
		ttl:      200 * time.Millisecond,
		stop:     make(chan struct{}),
	}

	rl.getVisitor("192.168.1.1")
	rl.evict(time.Now())
	assert.Len(t, rl.visitors, 1)

	rl.evict(time.Now().Add(time.Second))
	assert.Empty(t, rl.visitors)
}

func TestCleanupVisitors(t *testing.T) {
	rl := &RateLimiter{
		visitors: make(map[string]*clientLimiter),
		rate:     1,
		burst:    1,
		ttl:      50 * time.Millisecond,
		stop:     make(chan struct{}),
	}
	go rl.cleanupVisitors(20 * time.Millisecond)
	defer rl.Stop()

	rl.getVisitor("192.168.1.1")

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.visitors) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, 200, time.Minute)
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.getVisitor("192.168.1.1")
		}()
	}
	wg.Wait()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.visitors, 1)
}
