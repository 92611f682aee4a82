// internal/pkg/lock/lock.go
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired 表示在等待窗口内没有抢到锁。
	ErrNotAcquired = errors.New("lock: not acquired within wait timeout")
	// ErrNotHeld 表示释放时锁已经不属于当前持有者（通常是租约过期后被别人抢走）。
	ErrNotHeld = errors.New("lock: not held by this owner")
)

// Locker 是按资源 Key 加锁的分布式锁抽象。
// balance:{userId}、coupon:{couponId}、stock:{productId} 等热点资源
// 都通过它做单写者串行化。
type Locker interface {
	// Acquire 尝试获取 key 对应的锁。
	// wait 是最长等待时间，lease 是锁的租约时长，防止持有者崩溃后死锁。
	// 成功时返回用于释放的句柄。
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (Handle, error)
}

// Handle 代表一次成功的加锁，由调用方负责释放。
type Handle interface {
	Release(ctx context.Context) error
}

// WithLock 获取锁、执行 fn、释放锁。释放失败只记录，不覆盖业务错误。
func WithLock(ctx context.Context, l Locker, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	h, err := l.Acquire(ctx, key, wait, lease)
	if err != nil {
		return err
	}
	defer h.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}
