// Package ratelimit gates remote calls per chain endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const DefaultRequestsPerSecond = 10

// Limiter is a token bucket holding rps tokens where every spent token comes
// back exactly one interval after it was spent. Acquire reserves slots in
// arrival order, so any rolling interval admits at most rps calls and no
// waiter is overtaken.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	ring     []time.Time
	head     int
	now      func() time.Time
}

// New returns a limiter admitting requestsPerSecond calls per second.
// Non-positive values fall back to DefaultRequestsPerSecond.
func New(requestsPerSecond int) *Limiter {
	return NewWithInterval(requestsPerSecond, time.Second)
}

func NewWithInterval(tokens int, interval time.Duration) *Limiter {
	if tokens <= 0 {
		tokens = DefaultRequestsPerSecond
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Limiter{
		interval: interval,
		ring:     make([]time.Time, tokens),
		now:      time.Now,
	}
}

// Capacity is the number of tokens per interval.
func (l *Limiter) Capacity() int { return len(l.ring) }

// Acquire blocks until a token is available or ctx ends. A cancelled waiter
// keeps its reserved slot consumed, which only makes later callers more
// conservative.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slot := l.reserve()
	wait := slot.Sub(l.now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve claims the oldest token. It is usable once the interval since that
// token's previous use has elapsed.
func (l *Limiter) reserve() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.now()
	if prev := l.ring[l.head]; !prev.IsZero() {
		if ready := prev.Add(l.interval); ready.After(slot) {
			slot = ready
		}
	}
	l.ring[l.head] = slot
	l.head = (l.head + 1) % len(l.ring)
	return slot
}
