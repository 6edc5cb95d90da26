package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outbound navigations so one marketplace is never hit in
// rapid succession.
type Limiter interface {
	Wait(ctx context.Context) error
}

type SimpleLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleLimiter(minDelay, maxDelay time.Duration) *SimpleLimiter {
	return &SimpleLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (l *SimpleLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.calculateDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *SimpleLimiter) calculateDelay() time.Duration {
	if !l.jitter || l.minDelay >= l.maxDelay {
		return l.minDelay
	}
	delta := l.maxDelay - l.minDelay
	return l.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// AdaptiveLimiter stretches its delay window after consecutive failures and
// relaxes it again after a run of successes. Marketplaces that start serving
// captchas get slower traffic automatically.
type AdaptiveLimiter struct {
	*SimpleLimiter
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		SimpleLimiter: NewSimpleLimiter(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < time.Second {
			newMin = time.Second
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
