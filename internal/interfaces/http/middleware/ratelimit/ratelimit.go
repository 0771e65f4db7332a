// Package ratelimit throttles the back-channel endpoints per caller address.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const cleanupInterval = time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller address.
type RateLimiter struct {
	visitors map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	logger   *zap.Logger
}

func NewRateLimiter(r rate.Limit, b int, ttl time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*clientLimiter),
		rate:     r,
		burst:    b,
		ttl:      ttl,
		logger:   logger,
	}
}

// Run evicts idle callers until ctx is done
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for addr, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, addr)
		}
	}
}

func (rl *RateLimiter) getVisitor(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, exists := rl.visitors[addr]; exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.visitors[addr] = &clientLimiter{limiter, time.Now()}
	return limiter
}

// retryAfter is the number of whole seconds until the next token
func (rl *RateLimiter) retryAfter() int {
	if rl.rate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.rate)))
}

// callerAddress strips the port. middleware.RealIP may already have replaced
// RemoteAddr with a bare address.
func callerAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := callerAddress(r)
		limiter := rl.getVisitor(addr)
		if !limiter.Allow() {
			rl.logger.Warn("Rate limit exceeded", zap.String("remote_addr", addr), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			httperrors.RespondWithProtocolError(w, &apperrors.ProtocolError{
				Code:        apperrors.TemporarilyUnavailable,
				Description: "too many requests",
				Status:      http.StatusTooManyRequests,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
