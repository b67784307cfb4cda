// Package ratelimit implements attempt counters shared across replicas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/observer-server/internal/model"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Minute

	keyPrefix = "observer:attempts:"
)

// slidingWindow records one attempt under every key and returns the largest
// attempt count seen in the window.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
local highest = 0
for _, key in ipairs(KEYS) do
	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	redis.call('ZADD', key, now, member)
	local count = redis.call('ZCARD', key)
	redis.call('PEXPIRE', key, window)
	if count > highest then
		highest = count
	end
end
return highest
`)

// RedisLimiter is a sliding window limiter backed by Redis sorted sets.
type RedisLimiter struct {
	client      redis.Scripter
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

var _ model.AttemptLimiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter allowing maxAttempts per window.
func NewRedisLimiter(client redis.Scripter, maxAttempts int, window time.Duration) *RedisLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{client: client, maxAttempts: maxAttempts, window: window, now: time.Now}
}

// Allow records an attempt for every key and reports whether all of them
// are still within the limit. On a Redis failure the attempt is denied.
func (l *RedisLimiter) Allow(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, errors.New("ratelimit: no keys")
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = keyPrefix + key
	}

	now := l.now().UnixMilli()
	count, err := slidingWindow.Run(ctx, l.client, prefixed,
		now, l.window.Milliseconds(), fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: record attempt: %w", err)
	}
	return count <= l.maxAttempts, nil
}
