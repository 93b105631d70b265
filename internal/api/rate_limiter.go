package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	internalerrors "github.com/eth-reserves/internal/errors"
)

const retryAfterSeconds = 60

// RateLimiter manages per-client rate limiting for API requests
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex

	limit     rate.Limit
	burstSize int
	idleTTL   time.Duration
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per client.
// A non-positive value disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Inf,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
	if requestsPerMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
		rl.burstSize = max(requestsPerMinute/6, 10)
	}
	return rl
}

// getLimiter returns the limiter for a client, dropping idle ones on the way
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if c, ok := rl.limiters[key]; ok {
		c.lastSeen = now
		return c.limiter
	}

	for k, c := range rl.limiters {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.limiters, k)
		}
	}

	limiter := rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// clientKey identifies the caller by the first forwarded address, else the peer IP
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(clientKey(r))

			if !limiter.Allow() {
				limited := internalerrors.NewRateLimitError(retryAfterSeconds)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				respondError(w, limited.StatusCode, limited.Code, limited.Message, limited.Details)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
