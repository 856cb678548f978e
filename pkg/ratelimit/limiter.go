package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing API requests
type Limiter interface {
	// Allow takes a token if one is available without blocking
	Allow() bool
	// Wait blocks until a token is available or ctx is done
	Wait(ctx context.Context) error
	Reset()
}

// TokenBucket refills one token every interval up to capacity.
type TokenBucket struct {
	capacity int
	tokens   int
	interval time.Duration
	last     time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		interval: interval,
		last:     time.Now(),
		now:      time.Now,
	}
}

// PerMinute builds a bucket allowing rpm requests per minute with a burst of rpm/10.
func PerMinute(rpm int) *TokenBucket {
	if rpm < 1 {
		rpm = 1
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return NewTokenBucket(burst, time.Minute/time.Duration(rpm))
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		wait := tb.interval - tb.now().Sub(tb.last)
		tb.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.last = tb.now()
}

// refill credits whole intervals elapsed since the last credit.
func (tb *TokenBucket) refill() {
	if tb.interval <= 0 {
		tb.tokens = tb.capacity
		return
	}
	now := tb.now()
	n := int(now.Sub(tb.last) / tb.interval)
	if n <= 0 {
		return
	}
	tb.tokens += n
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = tb.last.Add(time.Duration(n) * tb.interval)
}

// Unlimited never blocks. Useful in tests.
type Unlimited struct{}

func (Unlimited) Allow() bool                { return true }
func (Unlimited) Wait(context.Context) error { return nil }
func (Unlimited) Reset()                     {}
