package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/logging"
)

// RateLimiter allows each client IP a fixed number of requests per window.
// Clients are keyed by RemoteAddr, so it must run after TrustedRealIP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*window
	rate      int
	period    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter creates a limiter allowing rate requests per period.
func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*window),
		rate:    rate,
		period:  period,
		now:     time.Now,
	}
}

// Allow consumes one request for key. When the window is used up it returns
// false and the time until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.clients[key] = &window{start: now, used: 1}
		return true, 0
	}
	if w.used >= rl.rate {
		return false, w.start.Add(rl.period).Sub(now)
	}
	w.used++
	return true, 0
}

// sweep drops expired windows at most once per period. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.period {
		return
	}
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.period {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if ip := extractIP(r.RemoteAddr); ip != nil {
			key = ip.String()
		}

		ok, retry := rl.Allow(key)
		if !ok {
			logging.FromContext(r.Context()).Warn("rate limit exceeded", "path", r.URL.Path, "ip", key)
			seconds := int(retry.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE001")
			return
		}
		next.ServeHTTP(w, r)
	})
}
