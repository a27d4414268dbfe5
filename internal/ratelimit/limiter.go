// Package ratelimit paces outbound API requests and escalates a
// penalty delay when the upstream reports throttling.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter wraps rate.Limiter with 429-driven penalty backoff. After
// SignalRateLimited, the next Wait sleeps the current backoff before
// taking a token.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration
	pending bool // a penalty sleep is owed to the next Wait
}

// NewLimiter creates a rate limiter allowing perMinute requests,
// with a small burst allowance
func NewLimiter(name string, perMinute int) *Limiter {
	rps := float64(perMinute) / 60.0
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		backoff: initialBackoff,
	}
}

// Wait blocks until a token is available or the context is cancelled.
// A pending rate-limit penalty is slept off first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	var penalty time.Duration
	if l.pending {
		penalty = l.backoff
		l.pending = false
	}
	l.mu.Unlock()

	if penalty > 0 {
		select {
		case <-time.After(penalty):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now without waiting
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SignalRateLimited should be called when a 429 response is received.
// Each signal doubles the backoff, capped at two minutes.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = true
	l.backoff *= 2
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}
}

// ResetBackoff clears the penalty after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.pending = false
}

// GetBackoff returns the current backoff duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
