// Package ratelimit throttles per-user request rates with Redis fixed
// windows so limits hold across replicas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and returns it together
// with the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// FixedWindowLimiter allows limit requests per key per window.
type FixedWindowLimiter struct {
	limit    int
	window   time.Duration
	client   redis.UniversalClient
	prefix   string
	failOpen bool
}

type Option func(*FixedWindowLimiter)

// FailOpen lets requests through while Redis is unreachable. The default
// is to reject them.
func FailOpen() Option {
	return func(l *FixedWindowLimiter) { l.failOpen = true }
}

// NewFixedWindowLimiter builds a limiter on a shared Redis client.
func NewFixedWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration, opts ...Option) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "advocate:ratelimit"
	}
	l := &FixedWindowLimiter{limit: limit, window: window, client: client, prefix: prefix}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow reports whether key is within quota and, when it is not, how long
// until the current window resets.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64Slice()
	if err != nil || len(res) != 2 {
		slog.Warn("rate limiter unavailable", "prefix", l.prefix, "fail_open", l.failOpen, "err", err)
		return l.failOpen, l.window
	}
	if res[0] <= int64(l.limit) {
		return true, 0
	}
	retry := time.Duration(res[1]) * time.Millisecond
	if retry <= 0 {
		retry = l.window
	}
	return false, retry
}
