// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/poolmind/poolmind/internal/apierrors"
)

// RateLimiter enforces a token-bucket limit per client IP and endpoint+verb.
// State is in-memory and per-process.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   *zap.SugaredLogger
}

func NewRateLimiter(requestsPerSecond, burst int, logger *zap.SugaredLogger) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	if burst <= 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists = rl.limiters[key]; !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter
}

// Handler returns the gin middleware. It runs before any handler logic, so a
// limited client never reaches the database.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := c.ClientIP() + "|" + c.Request.Method + "|" + path

		if !rl.getLimiter(key).Allow() {
			rl.logger.Warnw("rate limit exceeded",
				"ip", c.ClientIP(),
				"method", c.Request.Method,
				"path", path,
			)
			apiErr := apierrors.RateLimited("too many requests, slow down")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiErr)
			return
		}

		c.Next()
	}
}

// Cleanup drops accumulated limiters once the map grows past a bound. Buckets
// refill within seconds, so discarding them only momentarily raises the
// allowance for returning clients.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup runs Cleanup on a ticker until stop is closed.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
