// Package ratelimit provides request pacing for discovery traffic.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests against a single target.
// A Limiter built with a non-positive rate never blocks.
type Limiter struct {
	mu       sync.RWMutex
	limiter  *rate.Limiter
	rps      float64
	burst    int
	waits    atomic.Int64
	waitedNs atomic.Int64
}

// NewLimiter creates a new rate limiter.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{}
	l.setRate(requestsPerSecond, burst)
	return l
}

// Enabled reports whether the limiter paces requests.
func (l *Limiter) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter != nil
}

// Wait blocks until a request is allowed or context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.RLock()
	lim := l.limiter
	l.mu.RUnlock()

	if lim == nil {
		return ctx.Err()
	}

	start := time.Now()
	err := lim.Wait(ctx)
	l.waits.Add(1)
	l.waitedNs.Add(int64(time.Since(start)))
	return err
}

// setRate updates the rate limit. A non-positive rate disables pacing.
func (l *Limiter) setRate(requestsPerSecond float64, burst int) {
	if burst < 1 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rps = requestsPerSecond
	l.burst = burst

	if requestsPerSecond <= 0 {
		l.limiter = nil
		return
	}
	if l.limiter == nil {
		l.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		return
	}
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
	l.limiter.SetBurst(burst)
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LimiterStats{
		Rate:   l.rps,
		Burst:  l.burst,
		Waits:  l.waits.Load(),
		Waited: time.Duration(l.waitedNs.Load()),
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	Rate   float64       `json:"rate"`
	Burst  int           `json:"burst"`
	Waits  int64         `json:"waits"`
	Waited time.Duration `json:"waited"`
}
