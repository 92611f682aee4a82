// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"time"

	"commerce/internal/pkg/metrics"
	pkgredis "commerce/internal/pkg/redis"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const unlockScriptName = "lock_unlock"

// 只有持有者本人可以删除锁，避免租约过期后误删他人的锁。
var unlockScript = `
-- KEYS[1]: 锁的 Key
-- ARGV[1]: 加锁时生成的 owner token
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// RedisLocker 基于 SET NX PX + Lua 释放实现的分布式锁。
type RedisLocker struct {
	client *pkgredis.Client
	// 抢锁失败后的重试间隔
	retryInterval time.Duration
}

func NewRedisLocker(client *pkgredis.Client) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, err
	}
	return &RedisLocker{
		client:        client,
		retryInterval: 20 * time.Millisecond,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Handle, error) {
	token := uuid.New().String()
	redisKey := "lock:{" + key + "}"
	deadline := time.Now().Add(wait)
	start := time.Now()

	for {
		ok, err := l.client.GetClient().SetNX(ctx, redisKey, token, lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.LockAcquireSeconds.WithLabelValues("redis").Observe(time.Since(start).Seconds())
			return &redisHandle{locker: l, key: redisKey, token: token}, nil
		}
		if time.Now().After(deadline) {
			metrics.LockTimeouts.WithLabelValues("redis").Inc()
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

type redisHandle struct {
	locker *RedisLocker
	key    string
	token  string
}

func (h *redisHandle) Release(ctx context.Context) error {
	res, err := h.locker.client.RunScript(ctx, unlockScriptName, []string{h.key}, h.token)
	if err != nil {
		if err == redis.Nil {
			return ErrNotHeld
		}
		return err
	}
	if n, ok := res.(int64); ok && n == 0 {
		return ErrNotHeld
	}
	return nil
}
