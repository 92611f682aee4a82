// internal/service/coupon/infrastructure/redis_gate.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	pkgredis "commerce/internal/pkg/redis"
	"commerce/internal/service/coupon/domain/port"

	"github.com/redis/go-redis/v9"
)

const (
	reserveScriptName = "coupon_reserve"
	cancelScriptName  = "coupon_cancel"

	// 状态条目的保留时间。发完很久之后的轮询会落到 DB 查询。
	statusTTL = 24 * time.Hour
)

var reserveScript = `
-- KEYS[1]: 剩余名额的 Key, 例如: coupon:stock:{42}
-- KEYS[2]: 已占位用户集合的 Key, 例如: coupon:users:{42}
-- ARGV[1]: 当前请求的用户 ID

-- 1. 检查用户是否已领取过
if redis.call('sismember', KEYS[2], ARGV[1]) == 1 then
    return 2 -- 重复领取
end

-- 2. 获取当前剩余名额
local stock = tonumber(redis.call('get', KEYS[1]))

-- 3. 检查名额是否充足
if stock and stock > 0 then
    -- 4. 扣名额并记录用户，与上面的检查同属一次原子执行
    redis.call('decr', KEYS[1])
    redis.call('sadd', KEYS[2], ARGV[1])
    return 1 -- 占位成功
else
    return 0 -- 已发完
end
`

var cancelScript = `
-- KEYS[1]: 剩余名额的 Key
-- KEYS[2]: 已占位用户集合的 Key
-- ARGV[1]: 用户 ID

-- 只有确实占了位的用户才能归还名额，保证补偿幂等
if redis.call('srem', KEYS[2], ARGV[1]) == 1 then
    redis.call('incr', KEYS[1])
    return 1
end
return 0
`

// RedisIssueGate 是 port.IssueGate 和 port.IssueQueue 的 Redis 实现。
// 名额计数、去重集合、等待队列、状态表共用一个 hash tag，
// 保证集群模式下脚本涉及的 Key 落在同一个槽。
type RedisIssueGate struct {
	client *pkgredis.Client
}

func NewRedisIssueGate(client *pkgredis.Client) (*RedisIssueGate, error) {
	if err := client.LoadScriptFromContent(reserveScriptName, reserveScript); err != nil {
		return nil, fmt.Errorf("failed to load coupon reserve script: %w", err)
	}
	if err := client.LoadScriptFromContent(cancelScriptName, cancelScript); err != nil {
		return nil, fmt.Errorf("failed to load coupon cancel script: %w", err)
	}
	return &RedisIssueGate{client: client}, nil
}

func stockKey(couponID int64) string   { return fmt.Sprintf("coupon:stock:{%d}", couponID) }
func usersKey(couponID int64) string   { return fmt.Sprintf("coupon:users:{%d}", couponID) }
func queueKey(couponID int64) string   { return fmt.Sprintf("coupon:queue:{%d}", couponID) }
func statusKey(couponID int64) string  { return fmt.Sprintf("coupon:status:{%d}", couponID) }
func messageKey(couponID int64) string { return fmt.Sprintf("coupon:status:msg:{%d}", couponID) }

const pendingSetKey = "coupon:queues:pending"

func (g *RedisIssueGate) Reserve(ctx context.Context, couponID, userID int64) (port.GateResult, error) {
	keys := []string{stockKey(couponID), usersKey(couponID)}
	result, err := g.client.RunScript(ctx, reserveScriptName, keys, userID)
	if err != nil {
		return 0, fmt.Errorf("issue gate failed to run script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 0, 1, 2:
		return port.GateResult(code), nil
	default:
		return 0, fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

func (g *RedisIssueGate) Cancel(ctx context.Context, couponID, userID int64) error {
	keys := []string{stockKey(couponID), usersKey(couponID)}
	_, err := g.client.RunScript(ctx, cancelScriptName, keys, userID)
	if err != nil {
		return fmt.Errorf("issue gate failed to cancel reservation: %w", err)
	}
	return nil
}

// Prime 初始化名额计数，并清空历史占位。
func (g *RedisIssueGate) Prime(ctx context.Context, couponID, remaining int64) error {
	pipe := g.client.GetClient().Pipeline()
	pipe.Set(ctx, stockKey(couponID), remaining, 0)
	pipe.Del(ctx, usersKey(couponID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to prime coupon gate: %w", err)
	}
	return nil
}

func (g *RedisIssueGate) Enqueue(ctx context.Context, couponID, userID int64) (int64, int64, error) {
	member := strconv.FormatInt(userID, 10)
	pipe := g.client.GetClient().Pipeline()
	size := pipe.RPush(ctx, queueKey(couponID), member)
	pipe.SAdd(ctx, pendingSetKey, couponID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to enqueue issue request: %w", err)
	}
	// RPush 返回的长度就是自己的排队位置
	return size.Val(), size.Val(), nil
}

func (g *RedisIssueGate) Dequeue(ctx context.Context, couponID int64, max int) ([]int64, error) {
	values, err := g.client.GetClient().LPopCount(ctx, queueKey(couponID), max).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue issue requests: %w", err)
	}
	users := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue // 脏数据直接丢弃
		}
		users = append(users, id)
	}
	return users, nil
}

func (g *RedisIssueGate) PendingCoupons(ctx context.Context) ([]int64, error) {
	values, err := g.client.GetClient().SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (g *RedisIssueGate) SetStatus(ctx context.Context, couponID, userID int64, status port.IssueStatus, message string) error {
	field := strconv.FormatInt(userID, 10)
	pipe := g.client.GetClient().Pipeline()
	pipe.HSet(ctx, statusKey(couponID), field, string(status))
	pipe.HSet(ctx, messageKey(couponID), field, message)
	pipe.Expire(ctx, statusKey(couponID), statusTTL)
	pipe.Expire(ctx, messageKey(couponID), statusTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (g *RedisIssueGate) GetStatus(ctx context.Context, couponID, userID int64) (port.IssueStatus, string, int64, int64, error) {
	field := strconv.FormatInt(userID, 10)
	rdb := g.client.GetClient()

	statusVal, err := rdb.HGet(ctx, statusKey(couponID), field).Result()
	if err == redis.Nil {
		return port.StatusNotRequested, "", 0, 0, nil
	}
	if err != nil {
		return "", "", 0, 0, err
	}
	message, _ := rdb.HGet(ctx, messageKey(couponID), field).Result()

	status := port.IssueStatus(statusVal)
	if status != port.StatusProcessing {
		return status, message, 0, 0, nil
	}

	// 仍在排队：报告位置和队长
	var position, size int64
	if pos, err := rdb.LPos(ctx, queueKey(couponID), field, redis.LPosArgs{}).Result(); err == nil {
		position = pos + 1
	}
	size, _ = rdb.LLen(ctx, queueKey(couponID)).Result()
	return status, message, position, size, nil
}
