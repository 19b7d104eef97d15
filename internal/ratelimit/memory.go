package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter used in tests and as
// a fallback when Redis is not configured. Expired windows are swept lazily
// on check.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, name, key string, limit int, window time.Duration) Result {
	k := name + ":" + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[k]
	if !ok || !now.Before(e.resetAt) {
		l.entries[k] = &memoryEntry{count: 1, resetAt: now.Add(window)}
		l.sweepLocked(now)
		return Result{Allowed: true}
	}

	e.count++
	if e.count > limit {
		return Result{Allowed: false, RetryAfter: e.resetAt.Sub(now)}
	}
	return Result{Allowed: true}
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if len(l.entries) < 1024 {
		return
	}
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
		}
	}
}
