package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisLimiter struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisLimiter(rdb *redis.Client, log *logrus.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, log: log}
}

func (l *RedisLimiter) Check(ctx context.Context, name, key string, limit int, window time.Duration) Result {
	k := "rl:" + name + ":" + key

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		// fail open: a broken limiter must not take chat down
		l.log.WithError(err).WithField("limiter", name).Warn("rate limit check failed, allowing")
		return Result{Allowed: true}
	}

	if n == 1 {
		if err := l.rdb.PExpire(ctx, k, window).Err(); err != nil {
			l.log.WithError(err).WithField("limiter", name).Warn("failed to set limiter window")
		}
	}

	if n > int64(limit) {
		ttl, err := l.rdb.PTTL(ctx, k).Result()
		if err != nil || ttl <= 0 {
			ttl = window
		}
		return Result{Allowed: false, RetryAfter: ttl}
	}
	return Result{Allowed: true}
}
