package redis

import (
	"context"
	"fmt"
	"time"
)

// LoginLimiter is a fixed-window rate limiter for the sign-in endpoints:
// INCR the window key, set its expiry on first hit. Redis being down or
// absent fails open; losing rate limiting is better than losing logins.
type LoginLimiter struct {
	client *Client
	limit  int
	window time.Duration
}

func NewLoginLimiter(client *Client, limit int, window time.Duration) *LoginLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 if allowed
}

// Allow decides whether another sign-in attempt is admitted for the key
// (typically client IP).
func (l *LoginLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.limit <= 0 || l.client == nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, nil
	}

	// Atomic INCR + first-hit expiry; returns {count, ttl_ms}.
	const lua = `
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`
	res, err := l.client.rdb.Eval(ctx, lua, []string{"authgate:rl:" + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit redis eval: %w", err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return Decision{}, fmt.Errorf("ratelimit redis eval: unexpected result type")
	}

	count := int(arr[0].(int64))
	ttl := time.Duration(arr[1].(int64)) * time.Millisecond

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !d.Allowed {
		d.RetryAfter = ttl
		if d.RetryAfter <= 0 {
			d.RetryAfter = l.window
		}
	}
	return d, nil
}
