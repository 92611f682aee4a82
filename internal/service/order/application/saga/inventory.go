// internal/service/order/application/saga/inventory.go
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InventoryHandler 负责逐行条件扣减库存。
// 任何一行失败都会触发对已扣行的回补。
type InventoryHandler struct {
	NextHandler
}

func (h *InventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.DecrementStock")
	defer span.End()

	for _, item := range orderCtx.Order.Items {
		item := item
		if err := orderCtx.ProductService.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock decrement failed")
			return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}

		// 每扣减成功一行就注册一条回补，部分失败时只回补已扣的行
		orderCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.RestoreStock")
			defer compSpan.End()
			compSpan.SetAttributes(attribute.Int64("product.id", item.ProductID))
			if err := orderCtx.ProductService.RestoreStock(compCtx, item.ProductID, item.Quantity); err != nil {
				compSpan.RecordError(err)
			}
		})
	}

	span.AddEvent("all order items reserved")
	return h.executeNext(orderCtx)
}
