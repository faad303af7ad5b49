package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimitCleanupInterval = 5 * time.Minute
	rateLimitEntryTTL        = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterMap struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	rps       rate.Limit
	burst     int
	perMinute int
}

// newRateLimiterMap creates the per-IP limiters. Stale entries are
// evicted in the background until done is closed.
func newRateLimiterMap(requestsPerMinute int, done <-chan struct{}) *rateLimiterMap {
	rl := &rateLimiterMap{
		limiters:  make(map[string]*ipLimiter, 64),
		rps:       rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     requestsPerMinute, // Allow burst up to the per-minute limit.
		perMinute: requestsPerMinute,
	}

	go rl.cleanup(done)

	return rl
}

func (rl *rateLimiterMap) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[ip] = &ipLimiter{
			limiter:  limiter,
			lastSeen: time.Now(),
		}

		return limiter
	}

	entry.lastSeen = time.Now()

	return entry.limiter
}

// retryAfter is the whole number of seconds until the next token.
func (rl *rateLimiterMap) retryAfter() string {
	if rl.perMinute < 1 {
		return "60"
	}

	return strconv.Itoa((60 + rl.perMinute - 1) / rl.perMinute)
}

func (rl *rateLimiterMap) cleanup(done <-chan struct{}) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(time.Now())
		case <-done:
			return
		}
	}
}

func (rl *rateLimiterMap) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rateLimitEntryTTL {
			delete(rl.limiters, ip)
		}
	}
}

// rateLimitMiddleware returns a per-IP rate limiting middleware.
func (s *server) rateLimitMiddleware(
	limiters *rateLimiterMap,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.getLimiter(extractIP(r)).Allow() {
				w.Header().Set("Retry-After", limiters.retryAfter())
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client's IP address from the request.
func extractIP(r *http.Request) string {
	// Take the first IP of a proxy chain.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
