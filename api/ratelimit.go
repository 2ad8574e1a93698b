package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle clients are swept opportunistically during allow, so the limiter
// needs no background goroutine.
const (
	limiterSweepEvery = 3 * time.Minute
	limiterIdleEvict  = 15 * time.Minute
)

// ipLimiter holds one token bucket per client IP.
type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	refill    rate.Limit
	burst     int
	lastSweep time.Time
}

type clientBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a per-IP limiter refilling perSecond tokens
// with the given burst.
func newRateLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		clients:   make(map[string]*clientBucket),
		refill:    rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow reports whether the client identified by ip may proceed.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	c, ok := l.clients[ip]
	if !ok {
		c = &clientBucket{bucket: rate.NewLimiter(l.refill, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.bucket.Allow()
}

// sweep evicts buckets idle past the threshold. Caller holds mu.
func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterSweepEvery {
		return
	}
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdleEvict {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// rateLimitMiddleware rejects clients that exceed their per-IP budget
// with 429 and a Retry-After hint.
func rateLimitMiddleware(l *ipLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address used as the limiter key. Proxy headers
// (X-Real-IP, then the first X-Forwarded-For hop) are consulted only
// when trustProxy is set; everything else falls back to RemoteAddr.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := headerIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}

		xff := r.Header.Get("X-Forwarded-For")
		if first, _, found := strings.Cut(xff, ","); found {
			xff = first
		}
		if ip := headerIP(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// headerIP validates a proxy-supplied address so arbitrary header text
// never becomes a limiter key. Returns "" when s is not an IP.
func headerIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
