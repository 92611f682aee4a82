// internal/service/product/application/service.go
package application

import (
	"context"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/service/product/domain"
	"commerce/internal/service/product/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	popularTopN       = 5
	popularWindowDays = 3
	popularCacheTTL   = 30 * time.Second
)

// ProductService 商品查询与库存编排。
type ProductService struct {
	repo    domain.ProductRepository
	ranking port.SalesRanking
	cache   port.PopularCache
	tracer  trace.Tracer
	now     func() time.Time
}

func NewProductService(repo domain.ProductRepository, ranking port.SalesRanking, cache port.PopularCache, tracer trace.Tracer) *ProductService {
	return &ProductService{
		repo:    repo,
		ranking: ranking,
		cache:   cache,
		tracer:  tracer,
		now:     time.Now,
	}
}

// GetProduct 查询单个商品。
func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID))

	return s.repo.FindByID(ctx, productID)
}

// DecrementStock 为下单流程条件扣减库存。
func (s *ProductService) DecrementStock(ctx context.Context, productID, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	ctx, span := s.tracer.Start(ctx, "product.decrement_stock")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("product.quantity", quantity),
	)

	return s.repo.DecrementStock(ctx, productID, quantity)
}

// RestoreStock 补偿回补库存。
func (s *ProductService) RestoreStock(ctx context.Context, productID, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	ctx, span := s.tracer.Start(ctx, "product.restore_stock")
	defer span.End()

	return s.repo.RestoreStock(ctx, productID, quantity)
}

// RecordSale 把已完成订单的成交量计入热销榜。
// 榜单是尽力而为的：失败只记日志，不影响订单主流程。
func (s *ProductService) RecordSale(ctx context.Context, productID, quantity int64) {
	if err := s.ranking.RecordSale(ctx, productID, quantity, s.now()); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("product_id", productID).
			Msg("failed to record sale for popular ranking")
	}
}

// PopularProducts 返回最近 3 天销量 Top5，带短 TTL 缓存。
func (s *ProductService) PopularProducts(ctx context.Context) ([]domain.PopularProduct, error) {
	ctx, span := s.tracer.Start(ctx, "product.popular")
	defer span.End()

	if cached, ok := s.cache.Get(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	entries, err := s.ranking.TopN(ctx, popularTopN, popularWindowDays, s.now())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []domain.PopularProduct{}, nil
	}

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]domain.PopularProduct, 0, len(entries))
	for i, e := range entries {
		p, ok := byID[e.ProductID]
		if !ok {
			// 商品被下架但榜单里还有残留计数，跳过
			continue
		}
		out = append(out, domain.PopularProduct{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			SoldCount: e.SoldCount,
			Rank:      i + 1,
		})
	}

	s.cache.Set(ctx, out, popularCacheTTL)
	return out, nil
}
