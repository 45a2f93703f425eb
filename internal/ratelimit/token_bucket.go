package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens * 1000), ts}
`

// Result describes a single token bucket decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Bucket takes one token from the bucket stored under key.
type Bucket interface {
	Take(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

// TokenBucket is a Redis-backed bucket; refill happens inside the script so
// every API instance shares one budget per key.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}
	if err := validate(key, rate, burst); err != nil {
		return Result{}, err
	}

	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{key},
		rate,
		burst,
		bucketTTL(rate, burst).Milliseconds(),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	// Lua numbers come back as integers; tokens are scaled by 1000.
	allowed := toInt64(res[0]) == 1
	tokens := float64(toInt64(res[1])) / 1000
	return decision(allowed, tokens, rate, burst), nil
}

func decision(allowed bool, tokens, rate float64, burst int) Result {
	out := Result{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(tokens),
	}
	if !allowed {
		if needed := 1 - tokens; needed > 0 {
			out.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return out
}

func validate(key string, rate float64, burst int) error {
	switch {
	case key == "":
		return errors.New("rate limiter key is empty")
	case rate <= 0:
		return errors.New("rate limiter rate must be positive")
	case burst <= 0:
		return errors.New("rate limiter burst must be positive")
	}
	return nil
}

// bucketTTL keeps idle buckets around for twice the full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
