// internal/service/order/application/saga/complete_order.go
package saga

import (
	"fmt"

	"commerce/internal/service/order/domain"
)

// CompleteOrderHandler 负责把订单落库为完成态。
// 这是链上最后一个可失败的步骤，失败会触发前面所有补偿。
type CompleteOrderHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewCompleteOrderHandler(repo domain.OrderRepository) *CompleteOrderHandler {
	return &CompleteOrderHandler{repo: repo}
}

func (h *CompleteOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CompleteOrder")
	defer span.End()

	orderCtx.Order.MarkAsCompleted()
	if err := h.repo.Save(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save completed order: %w", err)
	}
	span.AddEvent("order saved with COMPLETED state")

	return h.executeNext(orderCtx)
}
