package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingLog trims the sorted set to the current window and adds a member
// only if the window still has room. It runs atomically on the server.
var slidingLog = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
if redis.call('ZCARD', key) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', key, ARGV[1], ARGV[5])
redis.call('PEXPIRE', key, ARGV[4])
return 1
`)

// RedisLimiter shares the admission log between API instances.
type RedisLimiter struct {
	client   redis.Scripter
	policies map[Bucket]Policy
	now      func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Scripter, policies map[Bucket]Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policies: policies, now: time.Now}
}

// WithClock replaces the time source.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, clientID string, bucket Bucket) (bool, error) {
	p, err := lookup(l.policies, bucket)
	if err != nil {
		return false, err
	}

	key := fmt.Sprintf("pq:rl:%s:%s", bucket, clientID)
	now := l.now().UnixMilli()
	window := p.Window.Milliseconds()
	// Scores are computed here so the script never formats large numbers.
	res, err := slidingLog.Run(ctx, l.client, []string{key},
		now, now-window, p.Limit, window, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("run sliding log script: %w", err)
	}
	return res == 1, nil
}
