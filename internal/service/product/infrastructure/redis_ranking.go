// internal/service/product/infrastructure/redis_ranking.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	pkgredis "commerce/internal/pkg/redis"
	"commerce/internal/service/product/domain/port"

	"github.com/redis/go-redis/v9"
)

const (
	dailySalesKeyFormat = "product:sales:%s"       // 按天的销量 zset，member=productID score=销量
	dailySalesTTL       = 7 * 24 * time.Hour       // 窗口外的日榜自动过期
	unionCacheTTL       = 10 * time.Second         // 聚合结果短暂复用
	unionKeyFormat      = "product:sales:union:%d" // 按窗口天数区分
)

// RedisSalesRanking 基于按天分桶的 Redis zset 实现热销榜。
// 写入走 ZINCRBY，查询用 ZUNIONSTORE 把窗口内的日榜聚合后取 TopN。
type RedisSalesRanking struct {
	client *pkgredis.Client
}

func NewRedisSalesRanking(client *pkgredis.Client) *RedisSalesRanking {
	return &RedisSalesRanking{client: client}
}

func dailyKey(t time.Time) string {
	return fmt.Sprintf(dailySalesKeyFormat, t.Format("2006-01-02"))
}

func (r *RedisSalesRanking) RecordSale(ctx context.Context, productID, quantity int64, at time.Time) error {
	key := dailyKey(at)
	rdb := r.client.GetClient()
	pipe := rdb.Pipeline()
	pipe.ZIncrBy(ctx, key, float64(quantity), strconv.FormatInt(productID, 10))
	pipe.Expire(ctx, key, dailySalesTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSalesRanking) TopN(ctx context.Context, n int, window int, now time.Time) ([]port.RankEntry, error) {
	if window <= 0 {
		window = 1
	}
	keys := make([]string, 0, window)
	for i := 0; i < window; i++ {
		keys = append(keys, dailyKey(now.AddDate(0, 0, -i)))
	}

	rdb := r.client.GetClient()
	unionKey := fmt.Sprintf(unionKeyFormat, window)
	pipe := rdb.Pipeline()
	pipe.ZUnionStore(ctx, unionKey, &redis.ZStore{Keys: keys})
	pipe.Expire(ctx, unionKey, unionCacheTTL)
	rangeCmd := pipe.ZRevRangeWithScores(ctx, unionKey, 0, int64(n-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	members, err := rangeCmd.Result()
	if err != nil {
		return nil, err
	}
	out := make([]port.RankEntry, 0, len(members))
	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		productID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, port.RankEntry{ProductID: productID, SoldCount: int64(z.Score)})
	}
	return out, nil
}
