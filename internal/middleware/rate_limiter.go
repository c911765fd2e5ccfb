package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter implements a fixed-window in-memory limiter keyed by
// participant address and by client IP.
type RateLimiter struct {
	participantLimits map[string]*windowCount
	ipLimits          map[string]*windowCount
	mu                sync.RWMutex

	participantMax int
	ipMax          int
	window         time.Duration
	done           chan struct{}
	stopOnce       sync.Once
}

type windowCount struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
// A max of zero disables that limit.
func NewRateLimiter(participantMax, ipMax int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		participantLimits: make(map[string]*windowCount),
		ipLimits:          make(map[string]*windowCount),
		participantMax:    participantMax,
		ipMax:             ipMax,
		window:            window,
		done:              make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// CheckParticipantLimit reports whether the participant may send another command.
func (rl *RateLimiter) CheckParticipantLimit(participantID string) bool {
	return rl.check(rl.participantLimits, participantID, rl.participantMax)
}

// CheckIPLimit reports whether the client IP may make another request.
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	return rl.check(rl.ipLimits, ip, rl.ipMax)
}

func (rl *RateLimiter) check(limits map[string]*windowCount, key string, max int) bool {
	if max <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := limits[key]
	if !exists || now.After(limit.resetTime) {
		limits[key] = &windowCount{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if limit.requests >= max {
		return false
	}

	limit.requests++
	return true
}

// GetParticipantRemaining returns remaining commands for the participant in this window.
func (rl *RateLimiter) GetParticipantRemaining(participantID string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	limit, exists := rl.participantLimits[participantID]
	if !exists || time.Now().After(limit.resetTime) {
		return rl.participantMax
	}

	remaining := rl.participantMax - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IPLimit rejects requests from clients over their IP budget with 429.
func (rl *RateLimiter) IPLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.CheckIPLimit(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()
		for key, limit := range rl.participantLimits {
			if now.After(limit.resetTime) {
				delete(rl.participantLimits, key)
			}
		}
		for ip, limit := range rl.ipLimits {
			if now.After(limit.resetTime) {
				delete(rl.ipLimits, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}
