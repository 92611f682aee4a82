// internal/service/order/application/saga/pricing.go
package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PricingHandler 负责校验商品并计算订单总价。
// 商品单价以此刻的快照为准，写入订单行。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Pricing")
	defer span.End()

	var total int64
	for i := range orderCtx.Order.Items {
		item := &orderCtx.Order.Items[i]
		product, err := orderCtx.ProductService.GetProduct(ctx, item.ProductID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "product lookup failed")
			return fmt.Errorf("product %d: %w", item.ProductID, err)
		}
		item.Price = product.Price
		total += product.Price * item.Quantity
	}

	orderCtx.Order.ApplyPricing(total, 0)
	span.SetAttributes(attribute.Int64("order.total_amount", total))

	return h.executeNext(orderCtx)
}
