package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one quota check. Exceeding the limit is a normal
// reported outcome, never an error.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts requests per (limiter name, caller key) over a fixed window.
// Every call consumes quota while the window is open, so callers must not
// probe without intending to spend it. Implementations never return errors;
// infrastructure failure fails open.
type Limiter interface {
	Check(ctx context.Context, name, key string, limit int, window time.Duration) Result
}
