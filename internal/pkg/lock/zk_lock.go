// internal/pkg/lock/zk_lock.go
package lock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"commerce/internal/pkg/metrics"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/distributed_locks" // 所有分布式锁的根节点

// ZkLocker 基于 ZooKeeper 临时顺序节点实现的分布式锁。
// 和 Redis 实现相比没有租约续期问题：会话断开节点自动删除。
// 通过配置 infra.lock.backend 可以在两种实现之间切换。
type ZkLocker struct {
	conn *zk.Conn
}

func NewZkLocker(servers []string, sessionTimeout time.Duration) (*ZkLocker, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	l := &ZkLocker{conn: conn}
	if err := l.ensurePath(lockRoot); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ZkLocker) ensurePath(path string) error {
	exists, _, err := l.conn.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = l.conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("failed to create lock path %s: %w", path, err)
	}
	return nil
}

func (l *ZkLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Handle, error) {
	// zk 的锁路径不允许包含斜杠以外的分隔符问题，统一替换
	resource := strings.ReplaceAll(key, "/", "_")
	lockPath := lockRoot + "/" + resource
	if err := l.ensurePath(lockPath); err != nil {
		return nil, err
	}
	start := time.Now()

	// 1. 创建临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("failed to create sequential node: %w", err)
	}
	h := &zkHandle{conn: l.conn, node: nodePath}

	deadline := time.Now().Add(wait)
	for {
		// 2. 获取锁路径下的所有子节点并排序
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			h.Release(ctx)
			return nil, fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点则获得锁
		myNodeName := strings.TrimPrefix(nodePath, lockPath+"/")
		if myNodeName == children[0] {
			metrics.LockAcquireSeconds.WithLabelValues("zookeeper").Observe(time.Since(start).Seconds())
			return h, nil
		}

		// 4. 否则监听排在自己前面的节点
		prevIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevIndex = i - 1
				break
			}
		}
		if prevIndex < 0 {
			h.Release(ctx)
			return nil, fmt.Errorf("cannot find own node %s under %s", myNodeName, lockPath)
		}

		_, _, eventChan, err := l.conn.ExistsW(lockPath + "/" + children[prevIndex])
		if err != nil {
			if err == zk.ErrNoNode {
				continue // 前一个节点恰好被删除，重新竞争
			}
			h.Release(ctx)
			return nil, fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(time.Until(deadline)):
			metrics.LockTimeouts.WithLabelValues("zookeeper").Inc()
			h.Release(ctx)
			return nil, ErrNotAcquired
		case <-ctx.Done():
			h.Release(context.WithoutCancel(ctx))
			return nil, ctx.Err()
		}
	}
}

type zkHandle struct {
	conn *zk.Conn
	node string
}

func (h *zkHandle) Release(_ context.Context) error {
	err := h.conn.Delete(h.node, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	return nil
}
