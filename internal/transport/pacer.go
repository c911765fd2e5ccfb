// Package transport holds what the chat transports share.
package transport

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound messages per address so a group never receives
// bursts that the chat platform would throttle.
type Pacer struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer allows one message per interval per address. A zero interval
// disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a message to address may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context, address string) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	l, ok := p.limiters[address]
	if !ok {
		l = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[address] = l
	}
	p.mu.Unlock()

	return l.Wait(ctx)
}
