package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/netbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyActorWrites = "netbill:ratelimit:writes:%s"

// Limiter throttles ledger writes (generation, payments, adjustments) per
// actor. A nil Limiter allows everything.
type Limiter struct {
	bucket Bucket
	rate   float64
	burst  int
}

func NewLimiterWithBucket(bucket Bucket, rate float64, burst int) *Limiter {
	return &Limiter{bucket: bucket, rate: rate, burst: burst}
}

// NewLimiter returns nil unless rate limiting is enabled and Redis is
// configured.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*Limiter, error) {
	log = log.Named("ratelimit")
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if !cfg.Redis.Enabled() {
		log.Warn("rate limiting enabled without REDIS_ADDR, writes are not throttled")
		return nil, nil
	}
	if err := validate("configured", limitCfg.Rate, limitCfg.Burst); err != nil {
		return nil, fmt.Errorf("rate limit config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("write rate limit enabled",
		zap.Float64("rate", limitCfg.Rate),
		zap.Int("burst", limitCfg.Burst),
	)
	return NewLimiterWithBucket(NewTokenBucket(client), limitCfg.Rate, limitCfg.Burst), nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowWrite takes one token from the actor's write budget.
func (l *Limiter) AllowWrite(ctx context.Context, actorID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "anonymous"
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyActorWrites, actorID), l.rate, l.burst)
}
