package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/tleprop/internal/httputil"
)

// limiterIdle is how long an IP's bucket may sit unused before it is dropped.
const limiterIdle = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	mu        sync.Mutex
	ips       map[string]*ipLimiter
	r         rate.Limit
	b         int
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		ips: make(map[string]*ipLimiter),
		r:   rate.Limit(perSecond),
		b:   burst,
		now: time.Now,
	}
}

// allow reports whether ip may make a request now.
func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdle {
		for k, v := range l.ips {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(l.ips, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.ips[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// rateLimitMiddleware rejects requests over the per-IP budget with 429.
// Probes and metrics scrapes are not counted.
func rateLimitMiddleware(l *ipRateLimiter, trustProxy bool) func(http.Handler) http.Handler {
	retryAfter := "1"
	if l.r > 0 && l.r < 1 {
		retryAfter = strconv.Itoa(int(1/float64(l.r)) + 1)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePath(r.URL.Path) || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if !l.allow(httputil.ClientIP(r, trustProxy)) {
				w.Header().Set("Retry-After", retryAfter)
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
