// Package ratelimit holds the Redis-backed limiters shared by the gRPC and
// HTTP servers. Each check runs as one Lua script so concurrent replicas see
// a consistent count.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
if count > tonumber(ARGV[2]) then
	return 0
end
return 1
`)

// FixedWindow allows RequestsPerSecond*WindowSeconds requests per window.
type FixedWindow struct {
	client            redis.Scripter
	window            int
	maxRequests       int
	RequestsPerSecond float64
}

// NewFixedWindow returns a fixed-window limiter. The window is at least one
// second and at least one request is allowed per window.
func NewFixedWindow(client redis.Scripter, requestsPerSecond float64, windowSeconds int) *FixedWindow {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	maxRequests := int(math.Ceil(requestsPerSecond * float64(windowSeconds)))
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &FixedWindow{
		client:            client,
		window:            windowSeconds,
		maxRequests:       maxRequests,
		RequestsPerSecond: requestsPerSecond,
	}
}

// MaxRequests is the number of requests allowed per window.
func (f *FixedWindow) MaxRequests() int { return f.maxRequests }

// WindowSeconds is the window length.
func (f *FixedWindow) WindowSeconds() int { return f.window }

// Allow implements Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := fixedWindowScript.Run(ctx, f.client, []string{"ratelimit:fw:" + key}, f.window, f.maxRequests).Int64()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}

// Bucket state is {last_refill, tokens}. Idle buckets expire after ARGV[4]
// seconds.
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', KEYS[1], 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'last_refill', now, 'tokens', tokens)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[4]))
return allowed
`)

// TokenBucket refills RequestsPerSecond tokens per second up to Burst.
type TokenBucket struct {
	client            redis.Scripter
	RequestsPerSecond float64
	Burst             int
	now               func() time.Time
}

// NewTokenBucket returns a token-bucket limiter. Burst is at least one.
func NewTokenBucket(client redis.Scripter, requestsPerSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		client:            client,
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
		now:               time.Now,
	}
}

// Allow implements Limiter.
func (b *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(b.now().UnixMilli()) / 1000
	ttl := 60
	if b.RequestsPerSecond > 0 {
		// long enough to refill a full bucket
		ttl = max(ttl, int(math.Ceil(float64(b.Burst)/b.RequestsPerSecond)))
	}

	allowed, err := tokenBucketScript.Run(ctx, b.client, []string{"ratelimit:tb:" + key},
		b.RequestsPerSecond, b.Burst, now, ttl).Int64()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}
