package front

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per caller address. It is an
// edge-level guard against bursty clients; the account-level limiters
// (login failures, SMS cooldowns) live in the cache and are authoritative.
type IPRateLimiter struct {
	ips sync.Map
	rps rate.Limit
	burst int
}

func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{rps: rps, burst: burst}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if existing, ok := l.ips.Load(ip); ok {
		return existing.(*rate.Limiter)
	}
	fresh := rate.NewLimiter(l.rps, l.burst)
	actual, _ := l.ips.LoadOrStore(ip, fresh)
	return actual.(*rate.Limiter)
}

// cleanupLoop periodically drops all buckets so idle addresses don't
// accumulate forever. Refill state is lost, which only ever errs in the
// caller's favor.
func (l *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.ips.Range(func(key, _ any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware rejects callers that exceed their bucket with RateLimited.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiterFor(r.RemoteAddr).Allow() {
			slog.Warn("ip_rate_limit_exceeded", "ip", r.RemoteAddr, "path", r.URL.Path)
			respondErr(w, apperr.New(apperr.RateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
