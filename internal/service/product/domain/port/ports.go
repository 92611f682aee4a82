// internal/service/product/domain/port/ports.go
package port

import (
	"context"
	"time"

	"commerce/internal/service/product/domain"
)

// SalesRanking 热销榜单端口：按滑动窗口累计销量并取 TopN。
type SalesRanking interface {
	// RecordSale 把一次成交计入当天的销量榜。
	RecordSale(ctx context.Context, productID, quantity int64, at time.Time) error
	// TopN 返回最近 window 天内销量前 n 的商品 ID 及销量。
	TopN(ctx context.Context, n int, window int, now time.Time) ([]RankEntry, error)
}

type RankEntry struct {
	ProductID int64
	SoldCount int64
}

// PopularCache 热销榜单结果缓存，减少榜单聚合对 Redis 的压力。
type PopularCache interface {
	Get(ctx context.Context) ([]domain.PopularProduct, bool)
	Set(ctx context.Context, products []domain.PopularProduct, ttl time.Duration)
}
