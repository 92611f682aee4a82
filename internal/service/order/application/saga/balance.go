// internal/service/order/application/saga/balance.go
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BalanceHandler 负责扣减用户余额。
type BalanceHandler struct {
	NextHandler
}

func (h *BalanceHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.DeductBalance")
	defer span.End()

	amount := orderCtx.Order.FinalAmount
	span.SetAttributes(attribute.Int64("order.final_amount", amount))

	if amount > 0 {
		if err := orderCtx.BalanceService.Deduct(ctx, orderCtx.Order.UserID, amount); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "balance deduction failed")
			return fmt.Errorf("deduct balance: %w", err)
		}

		orderCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.RefundBalance")
			defer compSpan.End()
			if err := orderCtx.BalanceService.Refund(compCtx, orderCtx.Order.UserID, amount); err != nil {
				compSpan.RecordError(err)
			}
		})
	}

	return h.executeNext(orderCtx)
}
