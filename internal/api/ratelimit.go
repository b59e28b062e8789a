// ABOUTME: Per-IP in-memory rate limiter for auth endpoints.
// ABOUTME: Uses golang.org/x/time/rate with background cleanup of idle entries.
package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"golang.org/x/time/rate"

	"github.com/Milo6x/dutyleak/internal/apperror"
)

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
	evictTTL time.Duration
	lastSeen map[string]time.Time
}

func newIPRateLimiter(r rate.Limit, burst int, evictTTL time.Duration) *ipRateLimiter {
	rl := &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		r:        r,
		burst:    burst,
		evictTTL: evictTTL,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether the given IP is within its rate limit.
func (rl *ipRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[ip] = l
	}
	rl.lastSeen[ip] = time.Now()
	return l.Allow()
}

func (rl *ipRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.evictTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.evictTTL)
		for ip, last := range rl.lastSeen {
			if last.Before(cutoff) {
				delete(rl.limiters, ip)
				delete(rl.lastSeen, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allowRequest reports whether the request's client IP is within its limit.
// The IP comes from r.RemoteAddr — chi's RealIP middleware must run first so
// X-Forwarded-For is honoured for requests behind a reverse proxy.
func (srv *Server) allowRequest(r *http.Request) bool {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return srv.rateLimiter.Allow(ip)
}

func rateLimitError() *apperror.AppError {
	return &apperror.AppError{
		Code:     apperror.CodeRateLimited,
		Message:  "rate limit exceeded",
		Severity: apperror.SeverityLow,
		Status:   http.StatusTooManyRequests,
	}
}

// authRateLimit returns a chi middleware that applies per-IP rate limiting.
func (srv *Server) authRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !srv.allowRequest(r) {
				w.Header().Set("Retry-After", "60")
				writeError(w, r, rateLimitError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitGuard is the huma operation middleware equivalent of authRateLimit,
// attached to credential-bearing operations (register, login, refresh).
func (srv *Server) rateLimitGuard() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		if !srv.allowRequest(r) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, rateLimitError())
			return
		}
		next(ctx)
	}
}
