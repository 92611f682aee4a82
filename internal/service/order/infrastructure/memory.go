// internal/service/order/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sync"

	"commerce/internal/service/order/domain"
)

// InMemoryOrderRepository 供测试和本地运行使用。
type InMemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewInMemoryOrderRepository() *InMemoryOrderRepository {
	return &InMemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *InMemoryOrderRepository) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &cp
	return nil
}

// All 返回所有订单的副本，测试断言用。
func (r *InMemoryOrderRepository) All() []*domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		cp := *o
		cp.Items = append([]domain.OrderItem(nil), o.Items...)
		out = append(out, &cp)
	}
	return out
}

func (r *InMemoryOrderRepository) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}
