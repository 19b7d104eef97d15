package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis connects the store backing the chat rate limiter and the
// retrieval cache. Accepts either a redis:// / rediss:// URI or a bare
// host:port address.
func InitRedis() error {
	val := os.Getenv("REDIS_URI")
	if val == "" {
		val = os.Getenv("REDIS_ADDR")
	}
	if val == "" {
		return errors.New("REDIS_URI (or REDIS_ADDR) environment variable is not set")
	}

	var opts *redis.Options
	if strings.Contains(val, "://") {
		parsed, err := redis.ParseURL(val)
		if err != nil {
			return err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: val}
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" && opts.Password == "" {
		opts.Password = pw
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}

	RedisClient = client
	return nil
}
