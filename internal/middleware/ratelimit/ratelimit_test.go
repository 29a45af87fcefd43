package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func do(h http.Handler, method, path, remote string) int {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestLimiter_BlocksAfterBurst(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 3})
	defer l.Stop()
	h := l.Middleware()(ok)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.RemoteAddr = "192.0.2.1:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestLimiter_SeparateClients(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1})
	defer l.Stop()
	h := l.Middleware()(ok)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1"))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.2:1"))
}

func TestLimiter_VerifyHasOwnBucket(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 600, BurstSize: 10, VerifyPerMin: 1})
	defer l.Stop()
	h := l.Middleware()(ok)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/verify", "192.0.2.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/v1/verify", "192.0.2.1:1"))
	// the general bucket is untouched
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1"))
}

func TestLimiter_ExemptPaths(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1})
	defer l.Stop()
	h := l.Middleware()(ok)

	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, do(h, http.MethodGet, path, "192.0.2.1:1"), path)
		}
	}
	assert.Zero(t, l.size())
}

func TestMiddleware_Disabled(t *testing.T) {
	h := Middleware(Config{Enabled: false, RequestsPerMin: 1, BurstSize: 1})(ok)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1"))
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 6000, BurstSize: 1000})
	defer l.Stop()
	h := l.Middleware()(ok)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(h, http.MethodGet, "/api/v1/runs", "192.0.2.1:1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, l.size())
}

func TestLimiter_Evict(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 5, CleanupMinutes: 1})
	defer l.Stop()

	base := time.Now()
	l.now = func() time.Time { return base }
	require.True(t, l.allow("192.0.2.1", classDefault))
	require.True(t, l.allow("192.0.2.2", classVerify))

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.True(t, l.allow("192.0.2.3", classDefault))
	l.evict()
	assert.Equal(t, 1, l.size())
}
