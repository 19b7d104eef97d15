package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterSixthCallRejected(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := l.Check(ctx, "chat-minute", "caller-1", 5, time.Minute)
		require.True(t, res.Allowed, "call %d should pass", i+1)
	}

	res := l.Check(ctx, "chat-minute", "caller-1", 5, time.Minute)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestMemoryLimiterCrossKeyIsolation(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, l.Check(ctx, "chat-minute", "a", 2, time.Minute).Allowed == (i < 2))
	}

	// a is exhausted; b and a different limiter name are untouched
	require.False(t, l.Check(ctx, "chat-minute", "a", 2, time.Minute).Allowed)
	require.True(t, l.Check(ctx, "chat-minute", "b", 2, time.Minute).Allowed)
	require.True(t, l.Check(ctx, "chat-hour", "a", 2, time.Minute).Allowed)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	cur := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return cur }
	ctx := context.Background()

	require.True(t, l.Check(ctx, "chat-minute", "a", 1, time.Minute).Allowed)
	require.False(t, l.Check(ctx, "chat-minute", "a", 1, time.Minute).Allowed)

	cur = cur.Add(61 * time.Second)
	require.True(t, l.Check(ctx, "chat-minute", "a", 1, time.Minute).Allowed)
}

func TestMemoryLimiterConcurrentCallers(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	done := make(chan int, 8)
	for g := 0; g < 8; g++ {
		go func(g int) {
			allowed := 0
			for i := 0; i < 10; i++ {
				if l.Check(ctx, "chat-minute", "shared", 40, time.Minute).Allowed {
					allowed++
				}
			}
			done <- allowed
		}(g)
	}

	total := 0
	for g := 0; g < 8; g++ {
		total += <-done
	}
	require.Equal(t, 40, total)
}
