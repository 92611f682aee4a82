// internal/service/product/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"commerce/internal/service/product/domain"
	"commerce/internal/service/product/domain/port"
)

// InMemoryProductRepository 供测试和本地运行使用，
// 与 GORM 实现保持同样的条件扣减语义。
type InMemoryProductRepository struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
}

func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{products: make(map[int64]*domain.Product)}
}

func (r *InMemoryProductRepository) Seed(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
}

func (r *InMemoryProductRepository) FindByID(_ context.Context, productID int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryProductRepository) FindByIDs(_ context.Context, productIDs []int64) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *InMemoryProductRepository) DecrementStock(_ context.Context, productID, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < quantity {
		return domain.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (r *InMemoryProductRepository) RestoreStock(_ context.Context, productID, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

// InMemorySalesRanking 按天分桶的内存榜单，语义与 Redis 实现一致。
type InMemorySalesRanking struct {
	mu    sync.Mutex
	daily map[string]map[int64]int64 // day -> productID -> count
}

func NewInMemorySalesRanking() *InMemorySalesRanking {
	return &InMemorySalesRanking{daily: make(map[string]map[int64]int64)}
}

func (r *InMemorySalesRanking) RecordSale(_ context.Context, productID, quantity int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := at.Format("2006-01-02")
	if r.daily[day] == nil {
		r.daily[day] = make(map[int64]int64)
	}
	r.daily[day][productID] += quantity
	return nil
}

func (r *InMemorySalesRanking) TopN(_ context.Context, n int, window int, now time.Time) ([]port.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[int64]int64)
	for i := 0; i < window; i++ {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		for id, count := range r.daily[day] {
			totals[id] += count
		}
	}
	entries := make([]port.RankEntry, 0, len(totals))
	for id, count := range totals {
		entries = append(entries, port.RankEntry{ProductID: id, SoldCount: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SoldCount != entries[j].SoldCount {
			return entries[i].SoldCount > entries[j].SoldCount
		}
		return entries[i].ProductID < entries[j].ProductID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// InMemoryPopularCache 进程内的榜单结果缓存。
type InMemoryPopularCache struct {
	mu        sync.Mutex
	products  []domain.PopularProduct
	expiresAt time.Time
	now       func() time.Time
}

func NewInMemoryPopularCache() *InMemoryPopularCache {
	return &InMemoryPopularCache{now: time.Now}
}

func (c *InMemoryPopularCache) Get(_ context.Context) ([]domain.PopularProduct, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products == nil || c.now().After(c.expiresAt) {
		return nil, false
	}
	out := make([]domain.PopularProduct, len(c.products))
	copy(out, c.products)
	return out, true
}

func (c *InMemoryPopularCache) Set(_ context.Context, products []domain.PopularProduct, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = make([]domain.PopularProduct, len(products))
	copy(c.products, products)
	c.expiresAt = c.now().Add(ttl)
}
