// Package ratelimit paces outbound calls to one external service.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultBackoff = 5 * time.Second

// Limiter enforces a minimum interval between call starts. One shared
// instance per external service serializes pacing across callers.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func New(minInterval time.Duration) *Limiter {
	return &Limiter{minInterval: minInterval}
}

// Wait sleeps until the next call is allowed to start. The last-request
// stamp is taken at call start, not completion, so throughput stays
// bounded even under slow responses.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	wait := l.minInterval - now.Sub(l.last)
	if wait < 0 {
		wait = 0
	}
	l.last = now.Add(wait)
	l.mu.Unlock()

	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff sleeps out a server-imposed delay after a 429. retryAfter is
// the server hint when present; zero falls back to a fixed default.
// The whole duration is slept, it is not treated as a backoff step.
func (l *Limiter) Backoff(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = defaultBackoff
	}
	l.mu.Lock()
	l.last = time.Now().Add(retryAfter)
	l.mu.Unlock()

	t := time.NewTimer(retryAfter)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
