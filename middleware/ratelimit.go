package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type rateLimiter struct {
	requests    map[string]*clientRequest
	mu          sync.Mutex
	limit       int
	window      time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type clientRequest struct {
	count     int
	resetTime time.Time
}

// RateLimiter allows limit requests per client IP per minute.
func RateLimiter(limit int) gin.HandlerFunc {
	return newRateLimiter(limit, time.Minute, time.Now).handle
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	if limit <= 0 {
		limit = 100
	}
	return &rateLimiter{
		requests:    make(map[string]*clientRequest),
		limit:       limit,
		window:      window,
		lastCleanup: now(),
		now:         now,
	}
}

func (rl *rateLimiter) handle(c *gin.Context) {
	ip := c.ClientIP()
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastCleanup) > rl.window {
		rl.cleanup(now)
	}

	client, exists := rl.requests[ip]
	if !exists || now.After(client.resetTime) {
		rl.requests[ip] = &clientRequest{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		rl.mu.Unlock()
		c.Next()
		return
	}

	if client.count >= rl.limit {
		retryAfter := client.resetTime.Sub(now).Seconds()
		rl.mu.Unlock()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Rate limit exceeded",
			"retry_after": retryAfter,
		})
		c.Abort()
		return
	}

	client.count++
	rl.mu.Unlock()
	c.Next()
}

// cleanup drops expired entries. Callers hold rl.mu.
func (rl *rateLimiter) cleanup(now time.Time) {
	for ip, client := range rl.requests {
		if now.After(client.resetTime) {
			delete(rl.requests, ip)
		}
	}
	rl.lastCleanup = now
}
