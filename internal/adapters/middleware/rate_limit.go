package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type workerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// WorkerRateLimiter limits requests per authenticated worker, falling back to the
// client address for anonymous requests
type WorkerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*workerLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

func NewWorkerRateLimiter(rps float64, burst int) *WorkerRateLimiter {
	return &WorkerRateLimiter{
		limiters: make(map[string]*workerLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// limiterFor returns the limiter for key and drops limiters idle longer than idleTTL
func (l *WorkerRateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) > 1024 {
			for k, e := range l.limiters {
				if now.Sub(e.lastSeen) > l.idleTTL {
					delete(l.limiters, k)
				}
			}
		}
		entry = &workerLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *WorkerRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := GetWorkerID(r.Context())
		if !ok {
			key = clientIP(r)
		}
		if !l.limiterFor(key, time.Now()).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP reads RemoteAddr; chi's RealIP middleware has already applied proxy headers
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
