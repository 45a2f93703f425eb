package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/netbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockKeyPrefix = "netbill:scheduler:"

// Locker keeps two scheduler instances from running the same job at once.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker is a single-node SET NX lock released only by its holder.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// localLocker is used when Redis is not configured; a single process always
// holds the lock.
type localLocker struct{}

func (localLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	return uuid.NewString(), true, nil
}

func (localLocker) Release(context.Context, string, string) error { return nil }

// NewLocker returns a Redis lock when REDIS_ADDR is set.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	if !cfg.Redis.Enabled() {
		log.Named("scheduler").Info("redis not configured, scheduler jobs use a local lock")
		return localLocker{}
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
	return NewRedisLocker(client)
}
