// internal/service/order/application/saga/coupon.go
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CouponHandler 负责核销优惠券并把抵扣金额写入订单。
// 未携带券的订单直接跳过。
type CouponHandler struct {
	NextHandler
}

func (h *CouponHandler) Handle(orderCtx *OrderContext) error {
	if orderCtx.Order.UserCouponID == 0 {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.UseCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("coupon.user_coupon_id", orderCtx.Order.UserCouponID))

	discount, err := orderCtx.CouponService.Use(
		ctx,
		orderCtx.Order.UserID,
		orderCtx.Order.UserCouponID,
		orderCtx.Order.TotalAmount,
		orderCtx.Order.TotalQuantity(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coupon use failed")
		return fmt.Errorf("use coupon %d: %w", orderCtx.Order.UserCouponID, err)
	}

	orderCtx.Order.ApplyPricing(orderCtx.Order.TotalAmount, discount)
	span.SetAttributes(attribute.Int64("coupon.discount_amount", discount))

	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.RestoreCoupon")
		defer compSpan.End()
		if err := orderCtx.CouponService.Restore(compCtx, orderCtx.Order.UserID, orderCtx.Order.UserCouponID); err != nil {
			compSpan.RecordError(err)
		}
	})

	return h.executeNext(orderCtx)
}
