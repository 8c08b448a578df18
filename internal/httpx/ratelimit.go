package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits answer submissions per client IP.
// Each submission can cost an LLM call, so page loads and health checks are not limited.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	proxies  *TrustedProxies
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing rps sustained submissions with the given burst.
// Clients are keyed by ClientIP; with nil proxies that is always the peer address.
func NewRateLimiter(rps float64, burst int, proxies *TrustedProxies) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		proxies:  proxies,
		now:      time.Now,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Evict drops clients not seen for longer than idle and returns how many were removed
func (rl *RateLimiter) Evict(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// RunEviction calls Evict every interval until ctx is done
func (rl *RateLimiter) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Evict(idle); n > 0 {
				slog.DebugContext(ctx, "Evicted idle rate limiter entries", "count", n)
			}
		}
	}
}

// Middleware rejects POST and other non-read requests over the limit with 429
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ip := rl.proxies.ClientIP(r)
			if rl.allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			slog.WarnContext(r.Context(), "Rate limit exceeded", append(requestAttrs(r), "client_ip", ip)...)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(float64(rl.rps), 'f', -1, 64))
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "too many questions, please wait a moment",
			})
		})
	}
}
