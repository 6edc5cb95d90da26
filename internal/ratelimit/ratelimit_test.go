package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleLimiterFirstCallIsFree(t *testing.T) {
	l := NewSimpleLimiter(time.Hour, 2*time.Hour)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimpleLimiterHonorsContext(t *testing.T) {
	l := NewSimpleLimiter(time.Hour, 2*time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveLimiterBacksOffAfterErrors(t *testing.T) {
	l := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	for i := 0; i < 3; i++ {
		l.RecordError()
	}

	assert.Equal(t, 3*time.Second, l.minDelay)
	assert.Equal(t, 6*time.Second, l.maxDelay)
}

func TestAdaptiveLimiterRelaxesAfterSuccesses(t *testing.T) {
	l := NewAdaptiveLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 6; i++ {
		l.RecordSuccess()
	}

	assert.Equal(t, 9*time.Second, l.minDelay)
}

func TestAdaptiveLimiterErrorResetsSuccessRun(t *testing.T) {
	l := NewAdaptiveLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 5; i++ {
		l.RecordSuccess()
	}
	l.RecordError()
	l.RecordSuccess()

	// The error broke the run; the window has not shrunk.
	assert.Equal(t, 10*time.Second, l.minDelay)
}
