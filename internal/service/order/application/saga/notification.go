// internal/service/order/application/saga/notification.go
package saga

import (
	"commerce/internal/pkg/logger"
)

// NotificationHandler 把订单完成事件发布到消息总线。
// 发布失败不影响订单主流程，只记录告警。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.PublishOrderCompleted")
	defer span.End()

	if err := orderCtx.Publisher.PublishOrderCompleted(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderCtx.Order.ID).
			Msg("failed to publish order completed event")
	}

	return h.executeNext(orderCtx)
}
