// internal/service/order/application/saga/handler.go
package saga

import (
	"context"
	"sync"

	"commerce/internal/pkg/logger"
	"commerce/internal/service/order/domain"
	"commerce/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象的出站端口。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Tracer trace.Tracer

	BalanceService port.BalanceService
	CouponService  port.CouponService
	ProductService port.ProductService
	Publisher      port.OrderEventPublisher

	// 补偿函数按注册的逆序执行
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().Str("order_id", c.Order.ID).Int("count", len(c.compensations)).
		Msg("executing saga compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
