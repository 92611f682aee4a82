// internal/service/order/domain/port/ports.go
package port

import (
	"context"

	"commerce/internal/service/order/domain"
	productdomain "commerce/internal/service/product/domain"
)

// BalanceService 是订单流程对余额能力的出站端口。
type BalanceService interface {
	Deduct(ctx context.Context, userID, amount int64) error
	Refund(ctx context.Context, userID, amount int64) error
}

// CouponService 是订单流程对优惠券能力的出站端口。
// Use 返回抵扣金额。
type CouponService interface {
	Use(ctx context.Context, userID, userCouponID, orderAmount, itemCount int64) (int64, error)
	Restore(ctx context.Context, userID, userCouponID int64) error
}

// ProductService 是订单流程对商品能力的出站端口。
type ProductService interface {
	GetProduct(ctx context.Context, productID int64) (*productdomain.Product, error)
	DecrementStock(ctx context.Context, productID, quantity int64) error
	RestoreStock(ctx context.Context, productID, quantity int64) error
}

// OrderEventPublisher 把订单完成事件发到消息总线，
// 供热销榜和推送网关消费。
type OrderEventPublisher interface {
	PublishOrderCompleted(ctx context.Context, order *domain.Order) error
}

// AnalyticsReporter 把成交订单上报给外部数据平台，尽力而为。
type AnalyticsReporter interface {
	ReportOrderCompleted(ctx context.Context, order *domain.Order) error
}
