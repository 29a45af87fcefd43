// Package ratelimit throttles clients per IP with token buckets. Routes that
// fan out to an RPC node get their own, stricter bucket.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SrJuanF/UnitPoints-System/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// VerifyPerMin applies to POST /api/v1/verify. Zero falls back to RequestsPerMin.
	VerifyPerMin   int
	CleanupMinutes int
}

type class uint8

const (
	classDefault class = iota
	classVerify
)

type bucketKey struct {
	ip    string
	class class
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds per-client buckets.
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	limits  map[class]rate.Limit
	bursts  map[class]int
	ttl     time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// New creates a Limiter and starts its eviction loop. Call Stop to end it.
func New(cfg Config) *Limiter {
	verify := cfg.VerifyPerMin
	if verify <= 0 {
		verify = cfg.RequestsPerMin
	}
	verifyBurst := min(cfg.BurstSize, verify)
	if verifyBurst <= 0 {
		verifyBurst = 1
	}

	ttl := time.Duration(cfg.CleanupMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	l := &Limiter{
		buckets: make(map[bucketKey]*bucket),
		limits: map[class]rate.Limit{
			classDefault: perMinute(cfg.RequestsPerMin),
			classVerify:  perMinute(verify),
		},
		bursts: map[class]int{
			classDefault: cfg.BurstSize,
			classVerify:  verifyBurst,
		},
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Stop ends the eviction loop.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evict()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.ttl)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) allow(ip string, c class) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := bucketKey{ip: ip, class: c}
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limits[c], l.bursts[c])}
		l.buckets[k] = b
	}
	b.lastSeen = l.now()
	return b.limiter.Allow()
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func classify(r *http.Request) class {
	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/verify" {
		return classVerify
	}
	return classDefault
}

// Middleware rejects requests over budget with 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !l.allow(realip.GetClientIP(r), classify(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware builds a Limiter from cfg, or a pass-through when disabled.
// The Limiter lives for the rest of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return New(cfg).Middleware()
}
